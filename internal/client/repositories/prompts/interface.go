package prompts

import (
	"context"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

// Repository describes CRUD and sync-support operations for Prompt records.
// It mirrors the folders repository; see that package for semantics.
type Repository interface {
	CreateOrUpdate(ctx context.Context, p *models.Prompt, pending bool) error
	GetAll(ctx context.Context) ([]*models.Prompt, error)
	GetByID(ctx context.Context, id string) (*models.Prompt, error)
	MarkDeleted(ctx context.Context, id string, pending bool) error
	HardDelete(ctx context.Context, id string) error
	GetAllPending(ctx context.Context) (upserts []*models.Prompt, deletions []string, err error)
	MarkSynced(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
