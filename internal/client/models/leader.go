package models

import "time"

// LeaderRecord is the single shared lease value visible to every process
// attached to the same local store. At most one process should believe itself
// leader at any instant; election is write-then-verify, so a narrow race
// window exists and callers re-verify before remote writes.
type LeaderRecord struct {
	OwnerToken      string `json:"owner_token"`
	TimestampMillis int64  `json:"timestamp_ms"`
}

// Age returns how long ago the lease was written.
func (r LeaderRecord) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(r.TimestampMillis))
}

// Expired reports whether the lease is older than the lease timeout and can
// be reclaimed by another process.
func (r LeaderRecord) Expired(now time.Time, lease time.Duration) bool {
	return r.Age(now) > lease
}
