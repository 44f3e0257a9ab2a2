package retryq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// OpKind is the remote operation a queued item retries.
type OpKind string

const (
	OpUpsert OpKind = "upsert"
	OpDelete OpKind = "delete"
)

// Default bounds.
const (
	DefaultCapacity   = 100
	DefaultMaxRetries = 3
)

// Item is one failed remote write awaiting replay.
type Item struct {
	Op         OpKind
	Table      models.Table
	ID         string
	Record     models.Record // nil for deletes
	RetryCount int
	EnqueuedAt time.Time
}

type key struct {
	table models.Table
	id    string
	op    OpKind
}

// Queue holds failed remote writes for replay on the next sync pass. It is
// bounded: past capacity the oldest item is evicted, and an item that keeps
// failing is dropped after maxRetries replay attempts. In-memory only; the
// pending flags in the local store are the durable record of unsynced work.
type Queue struct {
	log        logging.Logger
	capacity   int
	maxRetries int

	mu    sync.Mutex
	items []Item
	index map[key]int
}

// New returns a queue bounded at capacity items and maxRetries replays each.
func New(capacity, maxRetries int, log logging.Logger) *Queue {
	return &Queue{
		log:        log,
		capacity:   capacity,
		maxRetries: maxRetries,
		index:      make(map[key]int),
	}
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Enqueue adds a failed write. A duplicate of an already-queued (table, id,
// op) is coalesced away, keeping the existing item and its retry count. When
// the queue is full the oldest item is evicted to make room; the event is
// logged and surfaced as ErrQueueSaturated so callers can flag partial sync.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	k := key{table: item.Table, id: item.ID, op: item.Op}
	if _, ok := q.index[k]; ok {
		return nil
	}

	var saturated error
	if len(q.items) >= q.capacity {
		oldest := q.items[0]
		q.items = q.items[1:]
		delete(q.index, key{table: oldest.Table, id: oldest.ID, op: oldest.Op})
		for i := range q.items {
			q.index[key{table: q.items[i].Table, id: q.items[i].ID, op: q.items[i].Op}] = i
		}
		q.log.Warn(ctx, "retry queue full, evicting oldest item",
			"table", oldest.Table, "id", oldest.ID, "op", oldest.Op)
		saturated = common.ErrQueueSaturated
	}

	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	q.items = append(q.items, item)
	q.index[k] = len(q.items) - 1
	return saturated
}

// Drain replays every queued item through apply, in arrival order. The queue
// is swapped out first so items failing during the drain re-enqueue cleanly
// instead of looping forever. A failing item comes back with its retry count
// bumped until it has failed maxRetries times, then it is dropped for good.
// Items failing with ErrLeadershipLost are skipped outright: the new leader
// owns them now.
func (q *Queue) Drain(ctx context.Context, apply func(ctx context.Context, item Item) error) error {
	q.mu.Lock()
	batch := q.items
	q.items = nil
	q.index = make(map[key]int)
	q.mu.Unlock()

	var errs []error
	for _, item := range batch {
		if err := ctx.Err(); err != nil {
			// Everything not yet replayed goes back untouched.
			if qerr := q.Enqueue(ctx, item); qerr != nil {
				errs = append(errs, qerr)
			}
			continue
		}

		err := apply(ctx, item)
		if err == nil {
			continue
		}
		if errors.Is(err, common.ErrLeadershipLost) {
			q.log.Info(ctx, "dropping queued write, leadership lost",
				"table", item.Table, "id", item.ID, "op", item.Op)
			continue
		}

		item.RetryCount++
		if item.RetryCount >= q.maxRetries {
			q.log.Warn(ctx, "dropping queued write after repeated failures",
				"table", item.Table, "id", item.ID, "op", item.Op,
				"retries", item.RetryCount, "error", err)
			errs = append(errs, err)
			continue
		}
		if qerr := q.Enqueue(ctx, item); qerr != nil {
			errs = append(errs, qerr)
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
