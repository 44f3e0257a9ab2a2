package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesWatcher(t *testing.T) {
	marker := MarkerPath(filepath.Join(t.TempDir(), "test.db"))

	w, err := NewWatcher(marker)
	require.NoError(t, err)
	defer w.Close()

	b := NewBroadcaster(marker)
	require.NoError(t, b.Announce())

	select {
	case <-w.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("announcement never reached the watcher")
	}
}

func TestWatcherCollapsesBursts(t *testing.T) {
	marker := MarkerPath(filepath.Join(t.TempDir(), "test.db"))

	w, err := NewWatcher(marker)
	require.NoError(t, err)
	defer w.Close()

	b := NewBroadcaster(marker)
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Announce())
	}

	select {
	case <-w.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("announcement never reached the watcher")
	}

	// Whatever remains is at most the single buffered signal.
	var extra int
	deadline := time.After(100 * time.Millisecond)
loop:
	for {
		select {
		case <-w.Events():
			extra++
		case <-deadline:
			break loop
		}
	}
	assert.LessOrEqual(t, extra, 1)
}

func TestMarkerPath(t *testing.T) {
	assert.Equal(t, "vault.db.changed", MarkerPath("vault.db"))
}
