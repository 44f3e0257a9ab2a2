package prompts

import (
	"context"
	"database/sql"
	"encoding/json"
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

// CreateOrUpdate upserts a prompt by id. Tags are stored as a JSON array.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, p *models.Prompt, pending bool) error {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	query := `INSERT INTO prompts (id, title, content, tags, favorite, folder_id, created_at, updated_at, pending, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title,
				content = excluded.content,
				tags = excluded.tags,
				favorite = excluded.favorite,
				folder_id = excluded.folder_id,
				updated_at = excluded.updated_at,
				pending = excluded.pending,
				deleted = 0
	`
	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.Title, p.Content, tags, p.Favorite, p.FolderID,
		dbx.FormatTime(p.CreatedAt), dbx.FormatTime(p.UpdatedAt), pending)
	if err != nil {
		return fmt.Errorf("failed to upsert prompt: %w", err)
	}
	return nil
}

// GetAll lists all live prompts.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Prompt, error) {
	query := `SELECT id, title, content, tags, favorite, folder_id, created_at, updated_at
			FROM prompts WHERE deleted = 0 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select prompts: %w", err)
	}
	defer rows.Close()

	var result []*models.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID returns a single live prompt.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Prompt, error) {
	query := `SELECT id, title, content, tags, favorite, folder_id, created_at, updated_at
			FROM prompts WHERE deleted = 0 AND id = ?`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select prompt: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.ErrNotFound
	}
	return scanPrompt(rows)
}

// MarkDeleted tombstones a prompt.
func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id string, pending bool) error {
	query := `UPDATE prompts SET deleted = 1, pending = ? WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, pending, id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
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
	_, err := r.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to hard-delete prompt: %w", err)
	}
	return nil
}

// GetAllPending returns unconfirmed local mutations, split into upserts and
// tombstoned IDs.
func (r *SQLiteRepository) GetAllPending(ctx context.Context) ([]*models.Prompt, []string, error) {
	query := `SELECT id, title, content, tags, favorite, folder_id, created_at, updated_at, deleted
			FROM prompts WHERE pending = 1`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, err
	}
	defer rows.Close()

	var upserts []*models.Prompt
	var deletions []string
	for rows.Next() {
		p := &models.Prompt{}
		var tags string
		var createdAt, updatedAt sql.NullString
		var deleted bool
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &tags, &p.Favorite, &p.FolderID, &createdAt, &updatedAt, &deleted); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, nil, fmt.Errorf("failed to decode tags: %w", err)
		}
		if p.CreatedAt, err = dbx.ParseTime(createdAt); err != nil {
			return nil, nil, err
		}
		if p.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
			return nil, nil, err
		}
		if deleted {
			deletions = append(deletions, p.ID)
		} else {
			upserts = append(upserts, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return upserts, deletions, nil
}

// MarkSynced clears the pending flag after a confirmed upload.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE prompts SET pending = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark prompt synced: %w", err)
	}
	return nil
}

// Clear wipes everything except seed rows.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM prompts WHERE id NOT LIKE ?`, models.SeedIDPrefix+"%")
	if err != nil {
		return fmt.Errorf("failed to clear prompts: %w", err)
	}
	return nil
}

func scanPrompt(rows *sql.Rows) (*models.Prompt, error) {
	p := &models.Prompt{}
	var tags string
	var createdAt, updatedAt sql.NullString
	if err := rows.Scan(&p.ID, &p.Title, &p.Content, &tags, &p.Favorite, &p.FolderID, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("row scan failed: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	var err error
	if p.CreatedAt, err = dbx.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}
