// Package watch turns edits to a story file into text snapshots.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/rulegate/internal/ir"
)

const (
	// DefaultDebounce is how long to wait for more writes before reading.
	DefaultDebounce = 200 * time.Millisecond

	// eventChannelBuffer is the size of the snapshot channel.
	eventChannelBuffer = 64
)

// Snapshot is the full content of the watched file after a change.
type Snapshot struct {
	Path    string
	Text    string
	Hash    string // ir.TextHash of Text
	Removed bool   // the file disappeared; Text is empty
}

// FileWatcher watches one file and emits a Snapshot whenever its content
// changes. The parent directory is watched rather than the file itself,
// so editors that save by renaming a temp file over it are handled.
type FileWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// Debouncing: collect changes before reading
	pendingMu sync.Mutex
	pending   bool

	lastHash string // only touched by the processing goroutine

	events chan Snapshot

	droppedEvents atomic.Int64
}

// New creates a watcher for path. A non-positive debounce uses
// DefaultDebounce.
func New(path string, debounce time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWatcher{
		path:     abs,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		events:   make(chan Snapshot, eventChannelBuffer),
	}, nil
}

// Events returns the channel of snapshots. It is closed when the watcher
// stops.
func (w *FileWatcher) Events() <-chan Snapshot {
	return w.events
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}

// Start begins watching. If the file already exists its current content
// is emitted as the first snapshot.
func (w *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if _, err := os.Stat(w.path); err == nil {
		w.markPending()
	}

	go w.processEvents(ctx)

	w.logger.Info("file watcher started",
		"path", w.path,
		"debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *FileWatcher) Stop() error {
	return w.watcher.Close()
}

// DroppedEvents returns how many send attempts found the channel full.
func (w *FileWatcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

func (w *FileWatcher) markPending() {
	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()
}

// processEvents handles fsnotify events with debouncing.
func (w *FileWatcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.markPending()
			w.logger.Debug("story file change detected", "op", event.Op.String())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending reads the file once for any number of accumulated events
// and emits a snapshot if its content changed.
func (w *FileWatcher) flushPending() {
	w.pendingMu.Lock()
	if !w.pending {
		w.pendingMu.Unlock()
		return
	}
	w.pending = false
	w.pendingMu.Unlock()

	content, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		if w.lastHash == "" {
			return
		}
		if w.sendEvent(Snapshot{Path: w.path, Removed: true}) {
			w.lastHash = ""
		}
		return
	}
	if err != nil {
		w.logger.Warn("failed to read story file", "path", w.path, "error", err)
		return
	}

	text := string(content)
	hash := ir.TextHash(text)
	if hash == w.lastHash {
		return // content unchanged, skip
	}
	if w.sendEvent(Snapshot{Path: w.path, Text: text, Hash: hash}) {
		w.lastHash = hash
	}
}

// sendEvent offers a snapshot to the output channel. When the channel is
// full the snapshot is dropped and the file is marked pending again, so
// the next tick re-reads whatever it holds by then.
func (w *FileWatcher) sendEvent(s Snapshot) bool {
	select {
	case w.events <- s:
		w.logger.Debug("sent snapshot", "path", s.Path, "removed", s.Removed)
		return true
	default:
		dropped := w.droppedEvents.Add(1)
		w.markPending()
		w.logger.Warn("snapshot channel full, retrying next tick",
			"path", s.Path,
			"total_dropped", dropped)
		return false
	}
}
