// Package common defines shared constants and sentinel errors used across
// the sync engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sync flow errors. None of these is fatal: each degrades to
	// "retry later" or "skip this cycle".
	ErrNotAuthenticated = errors.New("no identity bound")
	ErrNotConnected     = errors.New("server unreachable")
	ErrRemoteRejected   = errors.New("write rejected by remote")
	ErrLeadershipLost   = errors.New("leadership lost")
	ErrQueueSaturated   = errors.New("retry queue at capacity")

	// ErrSyncInProgress is returned when a manual sync is requested while
	// another one is still running.
	ErrSyncInProgress = errors.New("sync already in progress")
)
