package models

import "time"

// Folder groups prompts and carries display attributes.
type Folder struct {
	// ID is a globally unique identifier for the folder.
	ID string

	// Name, Color and Icon are display attributes.
	Name  string
	Color string
	Icon  string

	// Position is the sort position within the folder list.
	Position int

	// CreatedAt / UpdatedAt are the conflict-resolution timestamps in UTC.
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (f *Folder) RecordID() string       { return f.ID }
func (f *Folder) CreatedTime() time.Time { return f.CreatedAt }
func (f *Folder) UpdatedTime() time.Time { return f.UpdatedAt }
