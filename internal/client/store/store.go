// Package store implements the local store adapter: an authoritative local
// copy of all synchronized records, backed by a shared SQLite database.
//
// Every mutation carries an explicit models.Origin. Remote-applied writes are
// never marked pending, which is what prevents the download/upload loop.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/folders"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/promptvault/internal/client/repositories/prompts"
	"github.com/dmitrijs2005/promptvault/internal/dbx"
	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// Store is the process-local handle to the shared local store.
type Store struct {
	db          *sql.DB
	folders     folders.Repository
	prompts     prompts.Repository
	meta        metadata.Repository
	broadcaster *Broadcaster
	log         logging.Logger
}

// New assembles a Store over an initialized database. broadcaster may be nil
// (no cross-process announcements, used in tests).
func New(db *sql.DB, broadcaster *Broadcaster, log logging.Logger) *Store {
	return &Store{
		db:          db,
		folders:     folders.NewSQLiteRepository(db),
		prompts:     prompts.NewSQLiteRepository(db),
		meta:        metadata.NewSQLiteRepository(db),
		broadcaster: broadcaster,
		log:         log,
	}
}

// DB exposes the underlying handle for lifecycle management.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// GetAll returns all live records in a table.
func (s *Store) GetAll(ctx context.Context, table models.Table) ([]models.Record, error) {
	switch table {
	case models.TableFolders:
		rows, err := s.folders.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		return foldersToRecords(rows), nil
	case models.TablePrompts:
		rows, err := s.prompts.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		return promptsToRecords(rows), nil
	default:
		return nil, fmt.Errorf("unsupported table: %s", table)
	}
}

// GetByID returns a single live record, or common.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, table models.Table, id string) (models.Record, error) {
	switch table {
	case models.TableFolders:
		return s.folders.GetByID(ctx, id)
	case models.TablePrompts:
		return s.prompts.GetByID(ctx, id)
	default:
		return nil, fmt.Errorf("unsupported table: %s", table)
	}
}

// Put inserts or updates a record. Local-origin writes are marked pending
// (awaiting upload) and raise the offline-work flag; remote-origin writes are
// applied as already synced.
func (s *Store) Put(ctx context.Context, table models.Table, rec models.Record, origin models.Origin) error {
	pending := origin == models.OriginLocal && !models.IsSeedID(rec.RecordID())

	var err error
	switch table {
	case models.TableFolders:
		f, ok := rec.(*models.Folder)
		if !ok {
			return fmt.Errorf("record type %T does not belong to table %s", rec, table)
		}
		err = s.folders.CreateOrUpdate(ctx, f, pending)
	case models.TablePrompts:
		p, ok := rec.(*models.Prompt)
		if !ok {
			return fmt.Errorf("record type %T does not belong to table %s", rec, table)
		}
		err = s.prompts.CreateOrUpdate(ctx, p, pending)
	default:
		return fmt.Errorf("unsupported table: %s", table)
	}
	if err != nil {
		return err
	}

	if pending {
		if err := s.SetOfflineWork(ctx, true); err != nil {
			s.log.Warn(ctx, "failed to raise offline-work flag", "error", err)
		}
	}
	s.announce(ctx)
	return nil
}

// Delete removes a record. Local deletions become pending tombstones so the
// deletion can be uploaded; remote deletions remove the row outright.
func (s *Store) Delete(ctx context.Context, table models.Table, id string, origin models.Origin) error {
	var err error
	switch {
	case origin == models.OriginRemote:
		err = s.hardDelete(ctx, table, id)
	case models.IsSeedID(id):
		// Seed records never reach the remote store, so no tombstone.
		err = s.hardDelete(ctx, table, id)
	default:
		// The tombstone and the offline-work flag must land together; a
		// tombstone without the flag could be lost to a wholesale discard.
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var derr error
			switch table {
			case models.TableFolders:
				derr = folders.NewSQLiteRepository(tx).MarkDeleted(ctx, id, true)
			case models.TablePrompts:
				derr = prompts.NewSQLiteRepository(tx).MarkDeleted(ctx, id, true)
			default:
				return fmt.Errorf("unsupported table: %s", table)
			}
			if derr != nil {
				return derr
			}
			return metadata.NewSQLiteRepository(tx).Set(ctx, keyOfflineWork, []byte("1"))
		})
	}
	if err != nil {
		return err
	}
	s.announce(ctx)
	return nil
}

// Clear discards all non-seed rows of a table. Remote state is untouched.
func (s *Store) Clear(ctx context.Context, table models.Table) error {
	switch table {
	case models.TableFolders:
		return s.folders.Clear(ctx)
	case models.TablePrompts:
		return s.prompts.Clear(ctx)
	default:
		return fmt.Errorf("unsupported table: %s", table)
	}
}

// Pending returns unconfirmed local mutations for a table: records to upsert
// remotely and tombstoned IDs to delete remotely. Seed records are filtered
// out defensively; they should never be marked pending in the first place.
func (s *Store) Pending(ctx context.Context, table models.Table) ([]models.Record, []string, error) {
	var recs []models.Record
	var deletions []string
	switch table {
	case models.TableFolders:
		ups, dels, err := s.folders.GetAllPending(ctx)
		if err != nil {
			return nil, nil, err
		}
		recs, deletions = foldersToRecords(ups), dels
	case models.TablePrompts:
		ups, dels, err := s.prompts.GetAllPending(ctx)
		if err != nil {
			return nil, nil, err
		}
		recs, deletions = promptsToRecords(ups), dels
	default:
		return nil, nil, fmt.Errorf("unsupported table: %s", table)
	}

	recs = dropSeeds(recs)
	kept := deletions[:0]
	for _, id := range deletions {
		if !models.IsSeedID(id) {
			kept = append(kept, id)
		}
	}
	return recs, kept, nil
}

// ConfirmUploaded clears the pending flag after the remote store accepted an
// upsert.
func (s *Store) ConfirmUploaded(ctx context.Context, table models.Table, id string) error {
	switch table {
	case models.TableFolders:
		return s.folders.MarkSynced(ctx, id)
	case models.TablePrompts:
		return s.prompts.MarkSynced(ctx, id)
	default:
		return fmt.Errorf("unsupported table: %s", table)
	}
}

// ConfirmDeleted removes a tombstone after the remote store accepted the
// deletion.
func (s *Store) ConfirmDeleted(ctx context.Context, table models.Table, id string) error {
	return s.hardDelete(ctx, table, id)
}

// HasPending reports whether any table still holds unconfirmed local work.
func (s *Store) HasPending(ctx context.Context) (bool, error) {
	for _, table := range models.SyncTables {
		recs, dels, err := s.Pending(ctx, table)
		if err != nil {
			return false, err
		}
		if len(recs) > 0 || len(dels) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) hardDelete(ctx context.Context, table models.Table, id string) error {
	switch table {
	case models.TableFolders:
		return s.folders.HardDelete(ctx, id)
	case models.TablePrompts:
		return s.prompts.HardDelete(ctx, id)
	default:
		return fmt.Errorf("unsupported table: %s", table)
	}
}

func (s *Store) announce(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Announce(); err != nil {
		s.log.Warn(ctx, "failed to broadcast data change", "error", err)
	}
}

func foldersToRecords(fs []*models.Folder) []models.Record {
	out := make([]models.Record, 0, len(fs))
	for _, f := range fs {
		out = append(out, f)
	}
	return out
}

func promptsToRecords(ps []*models.Prompt) []models.Record {
	out := make([]models.Record, 0, len(ps))
	for _, p := range ps {
		out = append(out, p)
	}
	return out
}

func dropSeeds(recs []models.Record) []models.Record {
	kept := recs[:0]
	for _, r := range recs {
		if !models.IsSeedID(r.RecordID()) {
			kept = append(kept, r)
		}
	}
	return kept
}
