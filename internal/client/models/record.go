// Package models defines the client-side data model shared by the local
// store, the remote adapter and the sync engine.
package models

import (
	"strings"
	"time"
)

// Table identifies a synchronized record table. The sync core operates on
// folders and prompts; user settings and usage history share the same remote
// boundary but are managed by the (external) admin surface.
type Table string

const (
	TableFolders      Table = "folders"
	TablePrompts      Table = "prompts"
	TableUserSettings Table = "user_settings"
	TableUsageHistory Table = "usage_history"
)

// SyncTables lists the tables managed by the sync core, in apply order:
// folders first, since prompts reference them.
var SyncTables = []Table{TableFolders, TablePrompts}

// Origin tags where a mutation came from. Remote-applied writes must not be
// re-uploaded, so every store mutation carries its origin explicitly instead
// of an optional boolean flag.
type Origin int

const (
	// OriginLocal marks a mutation made by this client (user edit).
	OriginLocal Origin = iota
	// OriginRemote marks a mutation applied from a remote change event or a
	// sync download.
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// SeedIDPrefix marks locally seeded demo records. Seed records never leave
// the local store: they are not uploaded, merged, or treated as deletable
// remote state.
const SeedIDPrefix = "default-"

// IsSeedID reports whether id belongs to a local-only seed record.
func IsSeedID(id string) bool {
	return strings.HasPrefix(id, SeedIDPrefix)
}

// Record is implemented by every synchronized record type.
type Record interface {
	// RecordID returns the globally unique, client-generated identifier.
	RecordID() string

	// CreatedTime returns the creation timestamp (UTC).
	CreatedTime() time.Time

	// UpdatedTime returns the last-modification timestamp (UTC).
	// A zero value means the record has never been edited.
	UpdatedTime() time.Time
}

// EffectiveTime returns the timestamp used for conflict resolution:
// UpdatedTime when set, CreatedTime otherwise.
func EffectiveTime(r Record) time.Time {
	if t := r.UpdatedTime(); !t.IsZero() {
		return t
	}
	return r.CreatedTime()
}

// Newer reports whether a is strictly newer than b. Equal timestamps are not
// "newer": merge resolution keeps the local version in that case.
func Newer(a, b Record) bool {
	return EffectiveTime(a).After(EffectiveTime(b))
}
