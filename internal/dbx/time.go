package dbx

import (
	"database/sql"
	"time"
)

// Timestamps are persisted as RFC3339Nano strings in UTC so they compare
// correctly as text and survive round-trips without driver-specific types.

// FormatTime renders t for storage. Zero times map to NULL.
func FormatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// ParseTime reads a stored timestamp. NULL maps to the zero time.
func ParseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
