package router

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/remote"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouterStore struct {
	mu   sync.Mutex
	sess models.Session
	recs map[models.Table]map[string]models.Record

	putOrigins []models.Origin
	deletes    []string
}

func newFakeRouterStore() *fakeRouterStore {
	f := &fakeRouterStore{
		sess: models.Session{UserID: "u1", AccessToken: "t"},
		recs: map[models.Table]map[string]models.Record{},
	}
	for _, table := range models.SyncTables {
		f.recs[table] = map[string]models.Record{}
	}
	return f
}

func (f *fakeRouterStore) Session(ctx context.Context) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess, nil
}

func (f *fakeRouterStore) detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = models.Session{}
}

func (f *fakeRouterStore) GetByID(ctx context.Context, table models.Table, id string) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[table][id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRouterStore) Put(ctx context.Context, table models.Table, rec models.Record, origin models.Origin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[table][rec.RecordID()] = rec
	f.putOrigins = append(f.putOrigins, origin)
	return nil
}

func (f *fakeRouterStore) Delete(ctx context.Context, table models.Table, id string, origin models.Origin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recs[table], id)
	f.deletes = append(f.deletes, id)
	return nil
}

// fakeSubscription feeds scripted events and then ends with a fixed error.
type fakeSubscription struct {
	events chan models.ChangeEvent
	endErr error
}

func (s *fakeSubscription) Events() <-chan models.ChangeEvent { return s.events }
func (s *fakeSubscription) Err() error                        { return s.endErr }
func (s *fakeSubscription) Close() error                      { return nil }

type fakeSubscriber struct {
	mu    sync.Mutex
	subs  []*fakeSubscription
	dials int
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, ownerID string) (remote.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if len(f.subs) == 0 {
		// Stay open until the test is over.
		return &fakeSubscription{events: make(chan models.ChangeEvent)}, nil
	}
	sub := f.subs[0]
	f.subs = f.subs[1:]
	return sub, nil
}

func (f *fakeSubscriber) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func insertEvent(id string, created time.Time) models.ChangeEvent {
	return models.ChangeEvent{
		Kind:  models.EventInsert,
		Table: models.TableFolders,
		After: &models.Folder{ID: id, Name: id, CreatedAt: created},
	}
}

func TestBurstDebouncesToSingleSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newFakeRouterStore()
	sub := &fakeSubscription{events: make(chan models.ChangeEvent)}
	subs := &fakeSubscriber{subs: []*fakeSubscription{sub}}

	const quiet = 300 * time.Millisecond
	var mu sync.Mutex
	var signals []time.Time
	r := New(st, subs, quiet, logging.Discard(), WithNotify(func(event any) {
		if _, ok := event.(models.DataChanged); ok {
			mu.Lock()
			signals = append(signals, time.Now())
			mu.Unlock()
		}
	}))

	done := make(chan struct{})
	go func() { defer close(done); r.Run(ctx) }()

	// 20 events inside a 50ms window.
	for i := 0; i < 20; i++ {
		if i > 0 {
			time.Sleep(2 * time.Millisecond)
		}
		sub.events <- insertEvent(string(rune('a'+i)), t0.Add(time.Duration(i)*time.Second))
	}
	lastEvent := time.Now()

	time.Sleep(quiet + 200*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, signals, 1, "a burst collapses into one signal")
	assert.GreaterOrEqual(t, signals[0].Sub(lastEvent), quiet,
		"the signal waits out the quiet period after the last event")

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Len(t, st.recs[models.TableFolders], 20, "every event was applied")
	for _, origin := range st.putOrigins {
		assert.Equal(t, models.OriginRemote, origin, "remote events must not re-upload")
	}
}

func TestFeedDropMidBurstStillWaitsOutQuietPeriod(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newFakeRouterStore()
	first := &fakeSubscription{events: make(chan models.ChangeEvent), endErr: io.EOF}
	subs := &fakeSubscriber{subs: []*fakeSubscription{first}}

	const quiet = 150 * time.Millisecond
	var mu sync.Mutex
	var signals []time.Time
	r := New(st, subs, quiet, logging.Discard(),
		WithBackoffs(Backoffs{Error: time.Millisecond, Timeout: time.Millisecond, Closed: time.Millisecond}),
		WithNotify(func(event any) {
			if _, ok := event.(models.DataChanged); ok {
				mu.Lock()
				signals = append(signals, time.Now())
				mu.Unlock()
			}
		}))

	done := make(chan struct{})
	go func() { defer close(done); r.Run(ctx) }()

	// The connection drops while a debounce is still pending.
	for i := 0; i < 3; i++ {
		first.events <- insertEvent(string(rune('a'+i)), t0.Add(time.Duration(i)*time.Second))
	}
	lastEvent := time.Now()
	close(first.events)

	time.Sleep(quiet + 150*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, signals, 1, "the interrupted burst still yields exactly one signal")
	assert.GreaterOrEqual(t, signals[0].Sub(lastEvent), quiet,
		"a feed drop must not short-circuit the quiet period")
}

func TestApplyDeleteEvent(t *testing.T) {
	ctx := context.Background()
	st := newFakeRouterStore()
	st.recs[models.TableFolders]["f1"] = &models.Folder{ID: "f1", CreatedAt: t0}
	r := New(st, &fakeSubscriber{}, time.Millisecond, logging.Discard())

	before := models.Record(&models.Folder{ID: "f1", CreatedAt: t0})
	err := r.apply(ctx, models.ChangeEvent{Kind: models.EventDelete, Table: models.TableFolders, Before: before})
	require.NoError(t, err)
	assert.NotContains(t, st.recs[models.TableFolders], "f1")
	assert.Equal(t, []string{"f1"}, st.deletes)
}

func TestApplyIgnoresStaleEvent(t *testing.T) {
	ctx := context.Background()
	st := newFakeRouterStore()
	st.recs[models.TableFolders]["f1"] = &models.Folder{ID: "f1", Name: "fresh", CreatedAt: t0.Add(100 * time.Second)}
	r := New(st, &fakeSubscriber{}, time.Millisecond, logging.Discard())

	err := r.apply(ctx, models.ChangeEvent{
		Kind:  models.EventUpdate,
		Table: models.TableFolders,
		After: &models.Folder{ID: "f1", Name: "stale", CreatedAt: t0, UpdatedAt: t0.Add(50 * time.Second)},
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", st.recs[models.TableFolders]["f1"].(*models.Folder).Name)
	assert.Empty(t, st.putOrigins)
}

func TestApplyIgnoresSeedEvents(t *testing.T) {
	ctx := context.Background()
	st := newFakeRouterStore()
	r := New(st, &fakeSubscriber{}, time.Millisecond, logging.Discard())

	err := r.apply(ctx, insertEvent("default-starter", t0))
	require.NoError(t, err)
	assert.Empty(t, st.recs[models.TableFolders])
}

func TestReconnectsAfterFeedEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newFakeRouterStore()
	first := &fakeSubscription{events: make(chan models.ChangeEvent), endErr: io.EOF}
	close(first.events)
	subs := &fakeSubscriber{subs: []*fakeSubscription{first}}

	r := New(st, subs, time.Millisecond, logging.Discard(),
		WithBackoffs(Backoffs{Error: time.Millisecond, Timeout: time.Millisecond, Closed: time.Millisecond}))

	done := make(chan struct{})
	go func() { defer close(done); r.Run(ctx) }()

	require.Eventually(t, func() bool { return subs.dialCount() >= 2 },
		time.Second, 5*time.Millisecond, "the subscription self-heals")
	cancel()
	<-done
}

func TestNoReconnectAfterSignOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newFakeRouterStore()
	first := &fakeSubscription{events: make(chan models.ChangeEvent), endErr: io.EOF}
	close(first.events)
	subs := &fakeSubscriber{subs: []*fakeSubscription{first}}

	st.detach()
	r := New(st, subs, time.Millisecond, logging.Discard(),
		WithBackoffs(Backoffs{Error: time.Millisecond, Timeout: time.Millisecond, Closed: time.Millisecond}))

	done := make(chan struct{})
	go func() { defer close(done); r.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("router should stop once the identity is detached")
	}
	assert.Zero(t, subs.dialCount())
}

func TestClassifyCloseCauses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want remote.CloseCause
	}{
		{"eof is an ordinary close", io.EOF, remote.CauseClosed},
		{"deadline is a timeout", context.DeadlineExceeded, remote.CauseTimeout},
		{"anything else is a hard error", assert.AnError, remote.CauseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remote.Classify(tt.err))
		})
	}
}
