package models

import "time"

// Prompt is a single prompt record, optionally filed under a folder.
type Prompt struct {
	ID       string
	Title    string
	Content  string
	Tags     []string
	Favorite bool

	// FolderID references the parent folder, nil for unfiled prompts.
	FolderID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Prompt) RecordID() string       { return p.ID }
func (p *Prompt) CreatedTime() time.Time { return p.CreatedAt }
func (p *Prompt) UpdatedTime() time.Time { return p.UpdatedAt }
