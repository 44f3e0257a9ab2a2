// Package syncer reconciles the shared local store with the remote record
// store: an initial merge on attach, then periodic leader-gated incremental
// uploads with retry-queue drains.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/remote"
	"github.com/dmitrijs2005/promptvault/internal/client/retryq"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// LocalStore is the slice of the store facade the orchestrator uses.
type LocalStore interface {
	Session(ctx context.Context) (models.Session, error)
	SyncState(ctx context.Context) (models.SyncState, error)
	SetLastAction(ctx context.Context, a models.LastAction) error
	SetLastTimestamp(ctx context.Context, t time.Time) error
	SetOfflineWork(ctx context.Context, pending bool) error

	GetAll(ctx context.Context, table models.Table) ([]models.Record, error)
	GetByID(ctx context.Context, table models.Table, id string) (models.Record, error)
	Put(ctx context.Context, table models.Table, rec models.Record, origin models.Origin) error
	Clear(ctx context.Context, table models.Table) error

	Pending(ctx context.Context, table models.Table) ([]models.Record, []string, error)
	ConfirmUploaded(ctx context.Context, table models.Table, id string) error
	ConfirmDeleted(ctx context.Context, table models.Table, id string) error
	HasPending(ctx context.Context) (bool, error)
}

// Elector is the leadership view the orchestrator consults. Every remote
// write is preceded by VerifyForSync because cached status goes stale
// between heartbeats.
type Elector interface {
	IsLeader() bool
	VerifyForSync(ctx context.Context) (bool, error)
}

// Stats is one sync cycle's outcome.
type Stats struct {
	Downloaded int
	Uploaded   int
	// Partial marks a cycle where some tables synced and others failed.
	Partial bool
}

// Orchestrator drives sync for one process. Only the elected leader uploads;
// followers skip cycles and receive data through the change router and the
// shared store.
type Orchestrator struct {
	store   LocalStore
	remote  remote.Remote
	elector Elector
	queue   *retryq.Queue
	log     logging.Logger

	notify      func(event any)
	syncTimeout time.Duration
	interval    time.Duration
	now         func() time.Time

	mu      sync.Mutex
	syncing bool
}

type Option func(*Orchestrator)

// WithNotify installs the downstream event sink (SyncCompleted events).
func WithNotify(fn func(event any)) Option {
	return func(o *Orchestrator) { o.notify = fn }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(store LocalStore, rem remote.Remote, elector Elector, queue *retryq.Queue,
	syncTimeout, interval time.Duration, log logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		remote:      rem,
		elector:     elector,
		queue:       queue,
		log:         log,
		syncTimeout: syncTimeout,
		interval:    interval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) emit(event any) {
	if o.notify != nil {
		o.notify(event)
	}
}

// InitialSync runs the attach-time reconciliation. The strategy depends on
// what the remote account holds and how this store got here:
//
//   - remote empty: local data is the sole source of truth, uploaded
//     wholesale (offline work created before the account existed survives);
//   - remote has data and this store carries no conflict signals: local rows
//     are discarded (never deleted remotely) and the account is downloaded,
//     so one identity's data cannot leak into another's session;
//   - remote has data and local offline work is pending: smart merge.
//
// Detached processes and followers skip; an unreachable remote defers the
// whole thing to the next tick.
func (o *Orchestrator) InitialSync(ctx context.Context) (Stats, error) {
	var stats Stats

	sess, err := o.store.Session(ctx)
	if err != nil {
		return stats, err
	}
	if !sess.Attached() {
		return stats, common.ErrNotAuthenticated
	}

	ok, err := o.elector.VerifyForSync(ctx)
	if err != nil {
		return stats, err
	}
	if !ok {
		o.log.Debug(ctx, "initial sync skipped, not leader")
		return stats, nil
	}

	if err := o.remote.Ping(ctx); err != nil {
		if errors.Is(err, common.ErrNotConnected) {
			if pending, perr := o.store.HasPending(ctx); perr == nil && pending {
				if serr := o.store.SetOfflineWork(ctx, true); serr != nil {
					o.log.Warn(ctx, "failed to flag offline work", "error", serr)
				}
			}
		}
		return stats, fmt.Errorf("initial sync deferred: %w", err)
	}

	state, err := o.store.SyncState(ctx)
	if err != nil {
		return stats, err
	}

	remoteByTable := make(map[models.Table][]models.Record, len(models.SyncTables))
	remoteEmpty := true
	for _, table := range models.SyncTables {
		recs, err := o.remote.Select(ctx, table, sess.UserID)
		if err != nil {
			return stats, fmt.Errorf("failed to probe remote %s: %w", table, err)
		}
		remoteByTable[table] = recs
		if len(recs) > 0 {
			remoteEmpty = false
		}
	}

	switch {
	case remoteEmpty:
		o.log.Info(ctx, "remote account is empty, uploading local data")
		stats, err = o.uploadWholesale(ctx)
	case state.OfflineWorkPending || state.LastAction == models.ActionSignUp:
		o.log.Info(ctx, "local offline work present, merging")
		stats, err = o.smartMerge(ctx, remoteByTable)
	case state.LastTimestamp.IsZero():
		// First sync after attaching to an account with data and no local
		// work worth keeping: local rows must not leak into this identity.
		o.log.Info(ctx, "adopting remote account data")
		stats, err = o.discardAndDownload(ctx, remoteByTable)
	default:
		stats, err = o.downloadOnly(ctx, remoteByTable)
	}
	if err != nil {
		return stats, err
	}

	if err := o.finishCycle(ctx, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// uploadWholesale pushes every non-seed local record, one batch per table.
func (o *Orchestrator) uploadWholesale(ctx context.Context) (Stats, error) {
	var stats Stats
	var errs []error

	for _, table := range models.SyncTables {
		recs, err := o.store.GetAll(ctx, table)
		if err != nil {
			errs = append(errs, err)
			stats.Partial = true
			continue
		}
		batch := dropSeeds(recs)
		if err := o.uploadBatch(ctx, table, batch); err != nil {
			errs = append(errs, err)
			stats.Partial = true
			continue
		}
		stats.Uploaded += len(batch)
	}
	return stats, errors.Join(errs...)
}

// discardAndDownload clears local tables (seeds survive, remote is never
// touched) and downloads the account.
func (o *Orchestrator) discardAndDownload(ctx context.Context, remoteByTable map[models.Table][]models.Record) (Stats, error) {
	var stats Stats
	var errs []error

	for _, table := range models.SyncTables {
		if err := o.store.Clear(ctx, table); err != nil {
			errs = append(errs, err)
			stats.Partial = true
			continue
		}
		n, err := o.downloadTable(ctx, table, remoteByTable[table])
		stats.Downloaded += n
		if err != nil {
			errs = append(errs, err)
			stats.Partial = true
		}
	}
	return stats, errors.Join(errs...)
}

// downloadOnly is the steady-state initial sync: download what is absent or
// strictly newer, upload nothing. Running it twice with no intervening remote
// change downloads nothing the second time.
func (o *Orchestrator) downloadOnly(ctx context.Context, remoteByTable map[models.Table][]models.Record) (Stats, error) {
	var stats Stats
	var errs []error
	for _, table := range models.SyncTables {
		n, err := o.downloadTable(ctx, table, remoteByTable[table])
		stats.Downloaded += n
		if err != nil {
			errs = append(errs, err)
			stats.Partial = true
		}
	}
	return stats, errors.Join(errs...)
}

// downloadTable applies remote records locally: absent records are inserted,
// present ones only when the remote copy is strictly newer. Tagged
// OriginRemote so the store does not queue them for re-upload. Idempotent.
func (o *Orchestrator) downloadTable(ctx context.Context, table models.Table, recs []models.Record) (int, error) {
	var n int
	var errs []error
	for _, rec := range recs {
		if models.IsSeedID(rec.RecordID()) {
			continue
		}
		local, err := o.store.GetByID(ctx, table, rec.RecordID())
		switch {
		case errors.Is(err, common.ErrNotFound):
			// absent locally, take it
		case err != nil:
			errs = append(errs, err)
			continue
		case !models.Newer(rec, local):
			continue
		}
		if err := o.store.Put(ctx, table, rec, models.OriginRemote); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// smartMerge reconciles both sides by identity. Local-only records upload,
// remote-only records download, records on both sides go to whichever copy
// has the strictly greater timestamp; equal timestamps keep local. Uploads
// are coalesced into one batch call per table.
func (o *Orchestrator) smartMerge(ctx context.Context, remoteByTable map[models.Table][]models.Record) (Stats, error) {
	var stats Stats
	var errs []error

	for _, table := range models.SyncTables {
		locals, err := o.store.GetAll(ctx, table)
		if err != nil {
			errs = append(errs, err)
			stats.Partial = true
			continue
		}

		localByID := make(map[string]models.Record, len(locals))
		for _, rec := range dropSeeds(locals) {
			localByID[rec.RecordID()] = rec
		}

		var upload []models.Record
		for _, rec := range remoteByTable[table] {
			if models.IsSeedID(rec.RecordID()) {
				continue
			}
			local, here := localByID[rec.RecordID()]
			if !here {
				if err := o.store.Put(ctx, table, rec, models.OriginRemote); err != nil {
					errs = append(errs, err)
					continue
				}
				stats.Downloaded++
				continue
			}
			delete(localByID, rec.RecordID())
			switch {
			case models.Newer(rec, local):
				if err := o.store.Put(ctx, table, rec, models.OriginRemote); err != nil {
					errs = append(errs, err)
					continue
				}
				stats.Downloaded++
			case models.Newer(local, rec):
				upload = append(upload, local)
			}
		}
		// Whatever remains is local-only.
		for _, rec := range localByID {
			upload = append(upload, rec)
		}

		if err := o.uploadBatch(ctx, table, upload); err != nil {
			errs = append(errs, err)
			stats.Partial = true
			continue
		}
		stats.Uploaded += len(upload)
	}
	return stats, errors.Join(errs...)
}

// uploadBatch pushes one table's records in a single call and confirms them
// locally. A failed batch lands in the retry queue record by record.
func (o *Orchestrator) uploadBatch(ctx context.Context, table models.Table, recs []models.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := o.remote.UpsertBatch(ctx, table, recs); err != nil {
		for _, rec := range recs {
			if qerr := o.queue.Enqueue(ctx, retryq.Item{
				Op: retryq.OpUpsert, Table: table, ID: rec.RecordID(), Record: rec,
			}); qerr != nil {
				o.log.Warn(ctx, "retry queue saturated", "table", table, "id", rec.RecordID())
			}
		}
		return fmt.Errorf("failed to upload %s batch: %w", table, err)
	}
	for _, rec := range recs {
		if err := o.store.ConfirmUploaded(ctx, table, rec.RecordID()); err != nil {
			o.log.Warn(ctx, "failed to confirm upload", "table", table, "id", rec.RecordID(), "error", err)
		}
	}
	return nil
}

// SyncTick is one incremental cycle: re-verify leadership, drain the retry
// queue, upload pending mutations and tombstones per table, then settle sync
// metadata. A follower's tick is a no-op. Table failures do not abort the
// remaining tables; the cycle reports a partial result instead.
func (o *Orchestrator) SyncTick(ctx context.Context) (Stats, error) {
	var stats Stats

	sess, err := o.store.Session(ctx)
	if err != nil {
		return stats, err
	}
	if !sess.Attached() {
		return stats, common.ErrNotAuthenticated
	}

	ok, err := o.elector.VerifyForSync(ctx)
	if err != nil {
		return stats, err
	}
	if !ok {
		o.log.Debug(ctx, "sync tick skipped, not leader")
		return stats, nil
	}

	var errs []error

	if err := o.queue.Drain(ctx, o.replayItem); err != nil {
		errs = append(errs, err)
		stats.Partial = true
	}

	for _, table := range models.SyncTables {
		uploaded, err := o.syncTable(ctx, table)
		stats.Uploaded += uploaded
		if err != nil {
			errs = append(errs, err)
			stats.Partial = true
		}
	}

	if err := o.finishCycle(ctx, &stats); err != nil {
		errs = append(errs, err)
	}
	return stats, errors.Join(errs...)
}

// syncTable uploads one table's pending upserts as a batch and replays its
// tombstones as remote deletes.
func (o *Orchestrator) syncTable(ctx context.Context, table models.Table) (int, error) {
	upserts, deletions, err := o.store.Pending(ctx, table)
	if err != nil {
		return 0, err
	}

	var n int
	var errs []error

	if err := o.uploadBatch(ctx, table, upserts); err != nil {
		errs = append(errs, err)
	} else {
		n = len(upserts)
	}

	for _, id := range deletions {
		if err := o.remote.Delete(ctx, table, id); err != nil {
			if qerr := o.queue.Enqueue(ctx, retryq.Item{
				Op: retryq.OpDelete, Table: table, ID: id,
			}); qerr != nil {
				o.log.Warn(ctx, "retry queue saturated", "table", table, "id", id)
			}
			errs = append(errs, err)
			continue
		}
		if err := o.store.ConfirmDeleted(ctx, table, id); err != nil {
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

// replayItem applies one queued write during a drain. Leadership is
// re-verified per item: a drain can outlive the verdict it started with.
func (o *Orchestrator) replayItem(ctx context.Context, item retryq.Item) error {
	ok, err := o.elector.VerifyForSync(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrLeadershipLost
	}

	switch item.Op {
	case retryq.OpDelete:
		if err := o.remote.Delete(ctx, item.Table, item.ID); err != nil {
			return err
		}
		return o.store.ConfirmDeleted(ctx, item.Table, item.ID)
	default:
		if err := o.remote.Upsert(ctx, item.Table, item.Record); err != nil {
			return err
		}
		return o.store.ConfirmUploaded(ctx, item.Table, item.ID)
	}
}

// finishCycle settles sync metadata after a cycle and emits SyncCompleted.
// The offline-work flag clears only once nothing pending remains.
func (o *Orchestrator) finishCycle(ctx context.Context, stats *Stats) error {
	pending, err := o.store.HasPending(ctx)
	if err != nil {
		return err
	}
	if !pending {
		if err := o.store.SetOfflineWork(ctx, false); err != nil {
			return err
		}
	}

	now := o.now()
	if err := o.store.SetLastTimestamp(ctx, now); err != nil {
		return err
	}

	o.log.Info(ctx, "sync cycle completed",
		"downloaded", stats.Downloaded, "uploaded", stats.Uploaded, "partial", stats.Partial)
	o.emit(models.SyncCompleted{
		Timestamp:  now,
		Downloaded: stats.Downloaded,
		Uploaded:   stats.Uploaded,
		Partial:    stats.Partial,
	})
	return nil
}

// SyncNow runs one cycle on demand under a hard timeout. The caller proceeds
// as if sync failed once the timeout fires, whether or not the in-flight
// call aborted. Overlapping manual syncs are rejected.
func (o *Orchestrator) SyncNow(ctx context.Context) (Stats, error) {
	o.mu.Lock()
	if o.syncing {
		o.mu.Unlock()
		return Stats{}, common.ErrSyncInProgress
	}
	o.syncing = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.syncing = false
		o.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, o.syncTimeout)
	defer cancel()
	return o.SyncTick(ctx)
}

// Run ticks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.SyncTick(ctx); err != nil && ctx.Err() == nil {
				o.log.Warn(ctx, "sync tick failed", "error", err)
			}
		}
	}
}

func dropSeeds(recs []models.Record) []models.Record {
	out := recs[:0:0]
	for _, rec := range recs {
		if !models.IsSeedID(rec.RecordID()) {
			out = append(out, rec)
		}
	}
	return out
}
