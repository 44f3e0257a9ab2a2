package election

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLeaseStore is an in-memory stand-in for the shared metadata row.
type fakeLeaseStore struct {
	mu  sync.Mutex
	rec *models.LeaderRecord
}

func (f *fakeLeaseStore) LeaderRecord(ctx context.Context) (*models.LeaderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rec == nil {
		return nil, nil
	}
	cp := *f.rec
	return &cp, nil
}

func (f *fakeLeaseStore) PutLeaderRecord(ctx context.Context, rec models.LeaderRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec = &rec
	return nil
}

func (f *fakeLeaseStore) DeleteLeaderRecord(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec = nil
	return nil
}

const (
	testLease     = 15 * time.Second
	testHeartbeat = 5 * time.Second
)

func newTestElector(store LeaseStore, now func() time.Time) *Elector {
	return New(store, testLease, testHeartbeat, 0, 0, logging.Discard(),
		WithClock(now), WithJitter(0))
}

func TestElectTakesVacantLease(t *testing.T) {
	ctx := context.Background()
	store := &fakeLeaseStore{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	e := newTestElector(store, func() time.Time { return now })
	won, err := e.Elect(ctx)
	require.NoError(t, err)
	assert.True(t, won)
	assert.True(t, e.IsLeader())

	rec, err := store.LeaderRecord(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, e.Token(), rec.OwnerToken)
}

func TestElectDefersToFreshLease(t *testing.T) {
	ctx := context.Background()
	store := &fakeLeaseStore{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	first := newTestElector(store, clock)
	won, err := first.Elect(ctx)
	require.NoError(t, err)
	require.True(t, won)

	second := newTestElector(store, clock)
	won, err = second.Elect(ctx)
	require.NoError(t, err)
	assert.False(t, won)
	assert.False(t, second.IsLeader())
	assert.True(t, first.IsLeader(), "quiescent store has exactly one leader")
}

func TestElectReclaimsExpiredLease(t *testing.T) {
	ctx := context.Background()
	store := &fakeLeaseStore{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	first := newTestElector(store, clock)
	won, err := first.Elect(ctx)
	require.NoError(t, err)
	require.True(t, won)

	// Past the lease timeout without a renewal the record is reclaimable.
	now = now.Add(testLease + time.Second)

	second := newTestElector(store, clock)
	won, err = second.Elect(ctx)
	require.NoError(t, err)
	assert.True(t, won)

	// The old holder notices on its next verification.
	ok, err := first.VerifyForSync(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, first.IsLeader())
}

func TestElectRenewsOwnLease(t *testing.T) {
	ctx := context.Background()
	store := &fakeLeaseStore{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	e := newTestElector(store, clock)
	won, err := e.Elect(ctx)
	require.NoError(t, err)
	require.True(t, won)

	before, err := store.LeaderRecord(ctx)
	require.NoError(t, err)

	now = now.Add(testHeartbeat)
	won, err = e.Elect(ctx)
	require.NoError(t, err)
	assert.True(t, won)

	after, err := store.LeaderRecord(ctx)
	require.NoError(t, err)
	assert.Greater(t, after.TimestampMillis, before.TimestampMillis, "renewal refreshes the lease")
}

func TestElectLosesRaceToConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	store := &fakeLeaseStore{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	e := newTestElector(store, clock)

	// Another process overwrites the lease during the settle window.
	require.NoError(t, store.PutLeaderRecord(ctx, models.LeaderRecord{
		OwnerToken: "rival", TimestampMillis: now.Add(-testLease - time.Second).UnixMilli(),
	}))
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.PutLeaderRecord(ctx, models.LeaderRecord{
			OwnerToken: "rival", TimestampMillis: now.UnixMilli(),
		})
	}()

	e.settleDelay = 50 * time.Millisecond
	won, err := e.Elect(ctx)
	require.NoError(t, err)
	assert.False(t, won, "the re-read names the rival, so this process reverts to follower")
	assert.False(t, e.IsLeader())
}

func TestVerifyForSync(t *testing.T) {
	ctx := context.Background()
	store := &fakeLeaseStore{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	e := newTestElector(store, clock)
	won, err := e.Elect(ctx)
	require.NoError(t, err)
	require.True(t, won)

	ok, err := e.VerifyForSync(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// An expired own lease fails verification too.
	now = now.Add(testLease + time.Second)
	ok, err = e.VerifyForSync(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResignOnlyRemovesOwnLease(t *testing.T) {
	ctx := context.Background()
	store := &fakeLeaseStore{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	e := newTestElector(store, clock)
	won, err := e.Elect(ctx)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, e.Resign(ctx))
	rec, err := store.LeaderRecord(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// A stale elector must not clobber the new leader's lease.
	require.NoError(t, store.PutLeaderRecord(ctx, models.LeaderRecord{
		OwnerToken: "rival", TimestampMillis: now.UnixMilli(),
	}))
	require.NoError(t, e.Resign(ctx))
	rec, err = store.LeaderRecord(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "rival", rec.OwnerToken)
}
