package models

import "time"

// LastAction records the most recent auth transition observed by this local
// store. It feeds the new-vs-existing account decision during initial sync.
type LastAction string

const (
	ActionNever   LastAction = "never"
	ActionSignIn  LastAction = "sign-in"
	ActionSignUp  LastAction = "sign-up"
	ActionSignOut LastAction = "sign-out"
)

// SyncState is the per-local-store sync metadata singleton.
type SyncState struct {
	LastAction    LastAction
	LastTimestamp time.Time

	// OfflineWorkPending is set whenever a mutation occurs while disconnected
	// or unauthenticated, and cleared only after a confirmed successful
	// upload of that work.
	OfflineWorkPending bool
}

// Session is the identity bound to this process. An empty UserID means the
// process is detached (signed out) and all remote calls no-op.
type Session struct {
	UserID      string
	AccessToken string
}

func (s Session) Attached() bool { return s.UserID != "" }

// EventKind classifies an inbound remote change event.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ChangeEvent is a single push notification from the remote store's
// change-subscription channel.
type ChangeEvent struct {
	Kind  EventKind
	Table Table

	// Before holds the previous record for update/delete events. For deletes
	// only the identifier may be populated.
	Before Record

	// After holds the new record for insert/update events.
	After Record
}

// RecordID returns the identifier the event is keyed by.
func (e ChangeEvent) RecordID() string {
	if e.After != nil {
		return e.After.RecordID()
	}
	if e.Before != nil {
		return e.Before.RecordID()
	}
	return ""
}

// DataChanged is the debounced outbound signal consumed by the UI layer.
type DataChanged struct {
	Timestamp time.Time
}

// SyncCompleted is emitted after a sync cycle, with per-cycle counts.
// Partial marks cycles where some tables synced and others failed.
type SyncCompleted struct {
	Timestamp  time.Time
	Downloaded int
	Uploaded   int
	Partial    bool
}
