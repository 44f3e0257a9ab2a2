package election

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/google/uuid"
)

// LeaseStore is the slice of the local store the elector needs: a single
// shared leader record read and written by every attached process.
type LeaseStore interface {
	LeaderRecord(ctx context.Context) (*models.LeaderRecord, error)
	PutLeaderRecord(ctx context.Context, rec models.LeaderRecord) error
	DeleteLeaderRecord(ctx context.Context) error
}

// Elector runs local leader election over the shared lease. One elector per
// process; the process that holds a fresh lease with its own token is the
// leader and performs remote writes on behalf of every attached process.
type Elector struct {
	store LeaseStore
	log   logging.Logger

	token             string
	leaseTimeout      time.Duration
	heartbeatInterval time.Duration
	settleDelay       time.Duration
	jitter            time.Duration

	// now is swappable in tests.
	now func() time.Time

	mu       sync.Mutex
	isLeader bool
}

type Option func(*Elector)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Elector) { e.now = now }
}

// WithJitter overrides the pre-election jitter window. Zero disables it.
func WithJitter(d time.Duration) Option {
	return func(e *Elector) { e.jitter = d }
}

func New(store LeaseStore, leaseTimeout, heartbeatInterval, settleDelay, jitter time.Duration, log logging.Logger, opts ...Option) *Elector {
	e := &Elector{
		store:             store,
		log:               log,
		token:             uuid.NewString(),
		leaseTimeout:      leaseTimeout,
		heartbeatInterval: heartbeatInterval,
		settleDelay:       settleDelay,
		jitter:            jitter,
		now:               time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Token returns this process's election identity.
func (e *Elector) Token() string { return e.token }

// IsLeader reports the outcome of the most recent election or verification.
func (e *Elector) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isLeader
}

func (e *Elector) setLeader(v bool) {
	e.mu.Lock()
	e.isLeader = v
	e.mu.Unlock()
}

// Elect attempts to take or renew leadership. Write-then-verify: a candidate
// writes its own lease, waits for concurrent candidates to do the same, and
// re-reads to see who actually won. Renewal by the current holder skips
// nothing; the same sequence refreshes the lease timestamp.
func (e *Elector) Elect(ctx context.Context) (bool, error) {
	if e.jitter > 0 {
		if err := sleep(ctx, time.Duration(rand.Int63n(int64(e.jitter)))); err != nil {
			return false, err
		}
	}

	rec, err := e.store.LeaderRecord(ctx)
	if err != nil {
		return false, err
	}

	now := e.now()
	if rec != nil && rec.OwnerToken != e.token && !rec.Expired(now, e.leaseTimeout) {
		// Someone else holds a fresh lease.
		e.setLeader(false)
		return false, nil
	}

	if err := e.store.PutLeaderRecord(ctx, models.LeaderRecord{
		OwnerToken:      e.token,
		TimestampMillis: now.UnixMilli(),
	}); err != nil {
		return false, err
	}

	if err := sleep(ctx, e.settleDelay); err != nil {
		return false, err
	}

	rec, err = e.store.LeaderRecord(ctx)
	if err != nil {
		return false, err
	}
	won := rec != nil && rec.OwnerToken == e.token
	e.setLeader(won)
	if won {
		e.log.Debug(ctx, "leadership confirmed", "token", e.token)
	}
	return won, nil
}

// VerifyForSync re-checks leadership without writing. Callers run this
// immediately before any remote write; losing here demotes the process.
func (e *Elector) VerifyForSync(ctx context.Context) (bool, error) {
	rec, err := e.store.LeaderRecord(ctx)
	if err != nil {
		return false, err
	}
	ok := rec != nil && rec.OwnerToken == e.token && !rec.Expired(e.now(), e.leaseTimeout)
	if !ok {
		e.setLeader(false)
	}
	return ok, nil
}

// Resign releases leadership, deleting the lease only if this process still
// owns it. A stale elector must not clobber the new leader's lease.
func (e *Elector) Resign(ctx context.Context) error {
	defer e.setLeader(false)

	rec, err := e.store.LeaderRecord(ctx)
	if err != nil {
		return err
	}
	if rec == nil || rec.OwnerToken != e.token {
		return nil
	}
	return e.store.DeleteLeaderRecord(ctx)
}

// Run elects immediately and then keeps renewing on the heartbeat interval
// until ctx is cancelled, resigning on the way out. A follower keeps
// heartbeating too: it takes over as soon as the leader's lease expires.
func (e *Elector) Run(ctx context.Context) {
	if _, err := e.Elect(ctx); err != nil && ctx.Err() == nil {
		e.log.Error(ctx, "election failed", "error", err)
	}

	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// ctx is done; detach the resign from it.
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := e.Resign(rctx); err != nil {
				e.log.Warn(rctx, "resign failed", "error", err)
			}
			return
		case <-ticker.C:
			if _, err := e.Elect(ctx); err != nil && ctx.Err() == nil {
				e.log.Error(ctx, "election failed", "error", err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
