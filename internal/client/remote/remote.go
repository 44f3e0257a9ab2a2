// Package remote defines the remote record-store boundary and its HTTP/
// websocket implementation. The sync engine only depends on the interfaces;
// tests substitute fakes.
package remote

import (
	"context"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

// Remote is an authenticated, table-addressed record store.
//
// Errors are mapped to the sentinels in internal/common: unreachable server
// to ErrNotConnected, 401/403 to ErrNotAuthenticated, other rejections to
// ErrRemoteRejected.
type Remote interface {
	// Ping probes server reachability.
	Ping(ctx context.Context) error

	// Select returns all records of a table owned by the given identity.
	Select(ctx context.Context, table models.Table, ownerID string) ([]models.Record, error)

	// Upsert writes one record, keyed by id (insert-or-update).
	Upsert(ctx context.Context, table models.Table, rec models.Record) error

	// UpsertBatch writes many records of one table in a single call.
	UpsertBatch(ctx context.Context, table models.Table, recs []models.Record) error

	// Delete removes one record by id.
	Delete(ctx context.Context, table models.Table, id string) error
}

// Subscriber opens the push-based change feed for an owner identity.
type Subscriber interface {
	Subscribe(ctx context.Context, ownerID string) (Subscription, error)
}

// Subscription is a live change feed. Events closes when the feed ends;
// Err then reports why.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Err() error
	Close() error
}
