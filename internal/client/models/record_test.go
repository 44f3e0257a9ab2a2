package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveTime(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	tests := []struct {
		name string
		rec  Record
		want time.Time
	}{
		{"updated set", &Folder{ID: "f1", CreatedAt: created, UpdatedAt: updated}, updated},
		{"never edited falls back to created", &Folder{ID: "f1", CreatedAt: created}, created},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveTime(tt.rec))
		})
	}
}

func TestNewer(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Record
		want bool
	}{
		{
			"strictly greater wins",
			&Prompt{ID: "p1", CreatedAt: t0, UpdatedAt: t0.Add(time.Second)},
			&Prompt{ID: "p1", CreatedAt: t0},
			true,
		},
		{
			"equal timestamps are not newer",
			&Prompt{ID: "p1", CreatedAt: t0},
			&Prompt{ID: "p1", CreatedAt: t0},
			false,
		},
		{
			"older is not newer",
			&Prompt{ID: "p1", CreatedAt: t0},
			&Prompt{ID: "p1", CreatedAt: t0, UpdatedAt: t0.Add(time.Second)},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Newer(tt.a, tt.b))
		})
	}
}

func TestIsSeedID(t *testing.T) {
	assert.True(t, IsSeedID("default-welcome"))
	assert.False(t, IsSeedID("f1"))
	assert.False(t, IsSeedID(""))
}

func TestLeaderRecordExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 30, 0, time.UTC)
	lease := 15 * time.Second

	fresh := LeaderRecord{OwnerToken: "a", TimestampMillis: now.Add(-5 * time.Second).UnixMilli()}
	assert.False(t, fresh.Expired(now, lease))

	stale := LeaderRecord{OwnerToken: "a", TimestampMillis: now.Add(-16 * time.Second).UnixMilli()}
	assert.True(t, stale.Expired(now, lease))
}
