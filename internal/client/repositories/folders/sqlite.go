package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateOrUpdate upserts a folder by id. An upsert revives a tombstone, so a
// record re-created remotely wins over a stale local deletion.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, f *models.Folder, pending bool) error {
	query := `INSERT INTO folders (id, name, color, icon, position, created_at, updated_at, pending, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name,
				color = excluded.color,
				icon = excluded.icon,
				position = excluded.position,
				updated_at = excluded.updated_at,
				pending = excluded.pending,
				deleted = 0
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.Name, f.Color, f.Icon, f.Position,
		dbx.FormatTime(f.CreatedAt), dbx.FormatTime(f.UpdatedAt), pending)
	if err != nil {
		return fmt.Errorf("failed to upsert folder: %w", err)
	}
	return nil
}

// GetAll lists all live folders ordered by position.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Folder, error) {
	query := `SELECT id, name, color, icon, position, created_at, updated_at
			FROM folders WHERE deleted = 0 ORDER BY position, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID returns a single live folder.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := `SELECT id, name, color, icon, position, created_at, updated_at
			FROM folders WHERE deleted = 0 AND id = ?`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.ErrNotFound
	}
	return scanFolder(rows)
}

// MarkDeleted tombstones a folder.
func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, pending bool) error {
	query := `UPDATE folders SET deleted = 1, pending = ? WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, pending, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

// HardDelete removes the row entirely.
func (r *SQLiteRepository) HardDelete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to hard-delete folder: %w", err)
	}
	return nil
}

// GetAllPending returns unconfirmed local mutations, split into upserts and
// tombstoned IDs.
func (r *SQLiteRepository) GetAllPending(ctx context.Context) ([]*models.Folder, []string, error) {
	query := `SELECT id, name, color, icon, position, created_at, updated_at, deleted
			FROM folders WHERE pending = 1`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, err
	}
	defer rows.Close()

	var upserts []*models.Folder
	var deletions []string
	for rows.Next() {
		f := &models.Folder{}
		var createdAt, updatedAt sql.NullString
		var deleted bool
		if err := rows.Scan(&f.ID, &f.Name, &f.Color, &f.Icon, &f.Position, &createdAt, &updatedAt, &deleted); err != nil {
			return nil, nil, err
		}
		if f.CreatedAt, err = dbx.ParseTime(createdAt); err != nil {
			return nil, nil, err
		}
		if f.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
			return nil, nil, err
		}
		if deleted {
			deletions = append(deletions, f.ID)
		} else {
			upserts = append(upserts, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return upserts, deletions, nil
}

// MarkSynced clears the pending flag after a confirmed upload.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE folders SET pending = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark folder synced: %w", err)
	}
	return nil
}

// Clear wipes everything except seed rows. Used when discarding one
// identity's data before downloading another's.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id NOT LIKE ?`, models.SeedIDPrefix+"%")
	if err != nil {
		return fmt.Errorf("failed to clear folders: %w", err)
	}
	return nil
}

func scanFolder(rows *sql.Rows) (*models.Folder, error) {
	f := &models.Folder{}
	var createdAt, updatedAt sql.NullString
	if err := rows.Scan(&f.ID, &f.Name, &f.Color, &f.Icon, &f.Position, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("row scan failed: %w", err)
	}
	var err error
	if f.CreatedAt, err = dbx.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return f, nil
}
