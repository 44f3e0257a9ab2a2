package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

// Wire DTOs. The remote store uses snake_case JSON and carries the owner on
// every record; the local model does not, so conversion happens here and
// nowhere else.

type folderDTO struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	Icon      string     `json:"icon"`
	Position  int        `json:"position"`
	UserID    string     `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (d folderDTO) toModel() *models.Folder {
	f := &models.Folder{
		ID:        d.ID,
		Name:      d.Name,
		Color:     d.Color,
		Icon:      d.Icon,
		Position:  d.Position,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.UpdatedAt != nil {
		f.UpdatedAt = d.UpdatedAt.UTC()
	}
	return f
}

func folderToDTO(f *models.Folder, ownerID string) folderDTO {
	d := folderDTO{
		ID:        f.ID,
		Name:      f.Name,
		Color:     f.Color,
		Icon:      f.Icon,
		Position:  f.Position,
		UserID:    ownerID,
		CreatedAt: f.CreatedAt.UTC(),
	}
	if !f.UpdatedAt.IsZero() {
		t := f.UpdatedAt.UTC()
		d.UpdatedAt = &t
	}
	return d
}

type promptDTO struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Tags      []string   `json:"tags"`
	Favorite  bool       `json:"favorite"`
	FolderID  *string    `json:"folder_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (d promptDTO) toModel() *models.Prompt {
	p := &models.Prompt{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		Tags:      d.Tags,
		Favorite:  d.Favorite,
		FolderID:  d.FolderID,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.UpdatedAt != nil {
		p.UpdatedAt = d.UpdatedAt.UTC()
	}
	return p
}

func promptToDTO(p *models.Prompt, ownerID string) promptDTO {
	d := promptDTO{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Tags:      p.Tags,
		Favorite:  p.Favorite,
		FolderID:  p.FolderID,
		UserID:    ownerID,
		CreatedAt: p.CreatedAt.UTC(),
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt.UTC()
		d.UpdatedAt = &t
	}
	return d
}

// encodeRecords converts records to their wire shape for one table.
func encodeRecords(table models.Table, recs []models.Record, ownerID string) (any, error) {
	switch table {
	case models.TableFolders:
		out := make([]folderDTO, 0, len(recs))
		for _, r := range recs {
			f, ok := r.(*models.Folder)
			if !ok {
				return nil, fmt.Errorf("record type %T does not belong to table %s", r, table)
			}
			out = append(out, folderToDTO(f, ownerID))
		}
		return out, nil
	case models.TablePrompts:
		out := make([]promptDTO, 0, len(recs))
		for _, r := range recs {
			p, ok := r.(*models.Prompt)
			if !ok {
				return nil, fmt.Errorf("record type %T does not belong to table %s", r, table)
			}
			out = append(out, promptToDTO(p, ownerID))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("table %s is not synchronized by this client", table)
	}
}

// decodeRecords parses a wire array into records of one table.
func decodeRecords(table models.Table, data []byte) ([]models.Record, error) {
	switch table {
	case models.TableFolders:
		var dtos []folderDTO
		if err := json.Unmarshal(data, &dtos); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", table, err)
		}
		out := make([]models.Record, 0, len(dtos))
		for _, d := range dtos {
			out = append(out, d.toModel())
		}
		return out, nil
	case models.TablePrompts:
		var dtos []promptDTO
		if err := json.Unmarshal(data, &dtos); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", table, err)
		}
		out := make([]models.Record, 0, len(dtos))
		for _, d := range dtos {
			out = append(out, d.toModel())
		}
		return out, nil
	default:
		return nil, fmt.Errorf("table %s is not synchronized by this client", table)
	}
}

// decodeRecord parses a single wire record, used by the change feed.
func decodeRecord(table models.Table, raw json.RawMessage) (models.Record, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch table {
	case models.TableFolders:
		var d folderDTO
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("failed to decode folder: %w", err)
		}
		return d.toModel(), nil
	case models.TablePrompts:
		var d promptDTO
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("failed to decode prompt: %w", err)
		}
		return d.toModel(), nil
	default:
		return nil, fmt.Errorf("table %s is not synchronized by this client", table)
	}
}

// changeEventDTO is the wire shape of one push notification.
type changeEventDTO struct {
	Event  string          `json:"event"`
	Table  string          `json:"table"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

func (d changeEventDTO) toModel() (models.ChangeEvent, error) {
	table := models.Table(d.Table)
	before, err := decodeRecord(table, d.Before)
	if err != nil {
		return models.ChangeEvent{}, err
	}
	after, err := decodeRecord(table, d.After)
	if err != nil {
		return models.ChangeEvent{}, err
	}
	ev := models.ChangeEvent{
		Kind:   models.EventKind(d.Event),
		Table:  table,
		Before: before,
		After:  after,
	}
	switch ev.Kind {
	case models.EventInsert, models.EventUpdate, models.EventDelete:
	default:
		return models.ChangeEvent{}, fmt.Errorf("unknown event kind: %q", d.Event)
	}
	return ev, nil
}
