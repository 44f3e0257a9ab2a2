package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Cross-process "data changed" broadcast. Processes sharing a local store
// cannot see each other's in-memory state, so announcements go through a
// marker file next to the database: writers touch it, watchers get an
// fsnotify event.

// MarkerPath returns the marker file location for a database path.
func MarkerPath(dbPath string) string {
	return dbPath + ".changed"
}

// Broadcaster announces local-store changes to other attached processes.
type Broadcaster struct {
	path string
}

func NewBroadcaster(path string) *Broadcaster {
	return &Broadcaster{path: path}
}

// Announce touches the marker file. The content is the wall-clock time of the
// announcement; watchers only care about the write event.
func (b *Broadcaster) Announce() error {
	payload := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := os.WriteFile(b.path, []byte(payload), 0o600); err != nil {
		return fmt.Errorf("failed to touch change marker: %w", err)
	}
	return nil
}

// Watcher delivers a signal whenever another process announces a change.
type Watcher struct {
	w      *fsnotify.Watcher
	path   string
	events chan struct{}
	done   chan struct{}
}

// NewWatcher starts watching the marker file, creating it if missing.
func NewWatcher(path string) (*Watcher, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("0"), 0o600); err != nil {
			return nil, fmt.Errorf("failed to create change marker: %w", err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: writes that replace the file keep the watch alive.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch marker directory: %w", err)
	}

	w := &Watcher{
		w:      fw,
		path:   path,
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Events signals once per announcement burst. The channel has capacity 1 and
// drops signals while the previous one is unconsumed; consumers re-read
// whatever state they need, so collapsed signals are fine.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.w.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case w.events <- struct{}{}:
			default:
			}
		case _, ok := <-w.w.Errors:
			if !ok {
				return
			}
		}
	}
}
