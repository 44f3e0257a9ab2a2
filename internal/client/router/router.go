// Package router applies inbound remote change events to the local store and
// collapses event bursts into a single debounced "data changed" signal.
// Routing runs in every process, leader or follower.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/remote"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// LocalStore is the slice of the store facade the router writes through.
type LocalStore interface {
	Session(ctx context.Context) (models.Session, error)
	GetByID(ctx context.Context, table models.Table, id string) (models.Record, error)
	Put(ctx context.Context, table models.Table, rec models.Record, origin models.Origin) error
	Delete(ctx context.Context, table models.Table, id string, origin models.Origin) error
}

// Backoffs are the reconnect delays per close cause.
type Backoffs struct {
	Error   time.Duration
	Timeout time.Duration
	Closed  time.Duration
}

// DefaultBackoffs matches the subscription self-healing policy: 30s after a
// hard error, 10s after a timeout, 15s after an ordinary close.
func DefaultBackoffs() Backoffs {
	return Backoffs{Error: 30 * time.Second, Timeout: 10 * time.Second, Closed: 15 * time.Second}
}

// Router consumes the remote change feed, applies each event locally tagged
// OriginRemote so nothing bounces back upstream, and fires one DataChanged
// once a burst has been quiet for the debounce period. The subscription
// self-heals; it stays down only once the identity has detached.
type Router struct {
	store LocalStore
	sub   remote.Subscriber
	log   logging.Logger

	notify   func(event any)
	quiet    time.Duration
	backoffs Backoffs
	now      func() time.Time
}

type Option func(*Router)

// WithNotify installs the downstream event sink (DataChanged events).
func WithNotify(fn func(event any)) Option {
	return func(r *Router) { r.notify = fn }
}

// WithBackoffs overrides the reconnect delays, for tests.
func WithBackoffs(b Backoffs) Option {
	return func(r *Router) { r.backoffs = b }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func New(store LocalStore, sub remote.Subscriber, quiet time.Duration, log logging.Logger, opts ...Option) *Router {
	r := &Router{
		store:    store,
		sub:      sub,
		log:      log,
		quiet:    quiet,
		backoffs: DefaultBackoffs(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run subscribes and routes until ctx is cancelled or the identity detaches.
func (r *Router) Run(ctx context.Context) {
	for {
		sess, err := r.store.Session(ctx)
		if err != nil {
			r.log.Error(ctx, "failed to read session", "error", err)
			return
		}
		if !sess.Attached() {
			r.log.Info(ctx, "identity detached, change routing stopped")
			return
		}

		sub, err := r.sub.Subscribe(ctx, sess.UserID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn(ctx, "change feed dial failed", "error", err)
			if !r.wait(ctx, r.backoffs.Error) {
				return
			}
			continue
		}

		cause, pending := r.consume(ctx, sub)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		if pending {
			// The feed dropped mid-burst. The downstream is still owed one
			// signal, but not before a full quiet period has passed.
			if !r.wait(ctx, r.quiet) {
				return
			}
			r.emitDataChanged()
		}

		var delay time.Duration
		switch cause {
		case remote.CauseTimeout:
			delay = r.backoffs.Timeout
		case remote.CauseClosed:
			delay = r.backoffs.Closed
		default:
			delay = r.backoffs.Error
		}
		r.log.Info(ctx, "change feed ended, reconnecting", "cause", cause, "delay", delay)
		if !r.wait(ctx, delay) {
			return
		}
	}
}

// consume routes events from one subscription until it ends, returning the
// close cause and whether a debounce was still pending. The debounce timer
// restarts on every event; DataChanged fires once the feed has been quiet for
// the full period. A pending debounce is never flushed here: firing it at
// teardown would signal earlier than the quiet period allows, so the caller
// carries it across the reconnect.
func (r *Router) consume(ctx context.Context, sub remote.Subscription) (remote.CloseCause, bool) {
	var timer *time.Timer
	var fire <-chan time.Time
	pending := func() bool {
		if timer == nil {
			return false
		}
		timer.Stop()
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return remote.CauseClosed, pending()

		case <-fire:
			timer, fire = nil, nil
			r.emitDataChanged()

		case ev, ok := <-sub.Events():
			if !ok {
				return remote.Classify(sub.Err()), pending()
			}
			if err := r.apply(ctx, ev); err != nil {
				// Local apply failures are not feed failures; the next
				// sync cycle reconciles.
				r.log.Warn(ctx, "failed to apply remote change",
					"table", ev.Table, "id", ev.RecordID(), "kind", ev.Kind, "error", err)
			}
			if timer == nil {
				timer = time.NewTimer(r.quiet)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-fire
				}
				timer.Reset(r.quiet)
			}
		}
	}
}

// apply writes one remote event through the store, tagged OriginRemote so
// the store never marks it pending for re-upload.
func (r *Router) apply(ctx context.Context, ev models.ChangeEvent) error {
	id := ev.RecordID()
	if id == "" || models.IsSeedID(id) {
		return nil
	}

	switch ev.Kind {
	case models.EventDelete:
		return r.store.Delete(ctx, ev.Table, id, models.OriginRemote)
	default:
		if ev.After == nil {
			return nil
		}
		// Last-writer-wins: an event older than the local copy (stale
		// delivery racing a fresher local edit) must not overwrite it.
		local, err := r.store.GetByID(ctx, ev.Table, id)
		switch {
		case errors.Is(err, common.ErrNotFound):
		case err != nil:
			return err
		case !models.Newer(ev.After, local):
			return nil
		}
		return r.store.Put(ctx, ev.Table, ev.After, models.OriginRemote)
	}
}

func (r *Router) emitDataChanged() {
	if r.notify != nil {
		r.notify(models.DataChanged{Timestamp: r.now()})
	}
}

func (r *Router) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
