package folders

import (
	"context"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

// Repository describes CRUD and sync-support operations for Folder records.
// Implementations are typically backed by a local SQLite database.
type Repository interface {
	// CreateOrUpdate inserts a new folder or updates an existing one by ID.
	// pending marks the row as a local mutation awaiting upload.
	CreateOrUpdate(ctx context.Context, f *models.Folder, pending bool) error

	// GetAll returns all live folders (tombstones excluded).
	GetAll(ctx context.Context) ([]*models.Folder, error)

	// GetByID returns a live folder by its identifier, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Folder, error)

	// MarkDeleted turns the row into a tombstone. pending marks the deletion
	// as awaiting upload.
	MarkDeleted(ctx context.Context, id string, pending bool) error

	// HardDelete removes the row entirely (applied remote deletions, or
	// confirmed tombstone uploads).
	HardDelete(ctx context.Context, id string) error

	// GetAllPending returns local mutations not yet confirmed uploaded:
	// live rows to upsert remotely and tombstone IDs to delete remotely.
	GetAllPending(ctx context.Context) (upserts []*models.Folder, deletions []string, err error)

	// MarkSynced clears the pending flag after a confirmed upload.
	MarkSynced(ctx context.Context, id string) error

	// Clear removes all rows except local-only seed records.
	Clear(ctx context.Context) error
}
