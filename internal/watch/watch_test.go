package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rulegate/internal/ir"
)

const testDebounce = 20 * time.Millisecond

func startWatcher(t *testing.T, path string) *FileWatcher {
	t.Helper()
	w, err := New(path, testDebounce, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	require.NoError(t, w.Start(ctx))
	return w
}

func next(t *testing.T, w *FileWatcher) Snapshot {
	t.Helper()
	select {
	case s, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestFileWatcher_InitialSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(path, []byte("once upon a time"), 0644))

	w := startWatcher(t, path)

	s := next(t, w)
	assert.Equal(t, "once upon a time", s.Text)
	assert.Equal(t, ir.TextHash("once upon a time"), s.Hash)
	assert.False(t, s.Removed)
}

// waitFor reads snapshots until one carries want. A write may be observed
// mid-truncate, so intermediate snapshots are skipped.
func waitFor(t *testing.T, w *FileWatcher, want string) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-w.Events():
			require.True(t, ok, "events channel closed")
			if s.Text == want {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot %q", want)
			return Snapshot{}
		}
	}
}

func TestFileWatcher_EmitsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	w := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("first draft"), 0644))
	waitFor(t, w, "first draft")

	require.NoError(t, os.WriteFile(path, []byte("second draft"), 0644))
	s := waitFor(t, w, "second draft")
	assert.Equal(t, w.Path(), s.Path)
}

func TestFileWatcher_SkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0644))

	// Drive the flush directly so no fsnotify timing is involved.
	w, err := New(path, testDebounce, nil)
	require.NoError(t, err)
	defer w.Stop()

	w.markPending()
	w.flushPending()
	require.Len(t, w.events, 1)
	<-w.events

	w.markPending()
	w.flushPending()
	assert.Len(t, w.events, 0, "identical content is not emitted again")

	w.flushPending()
	assert.Len(t, w.events, 0, "nothing pending")
}

func TestFileWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.txt")
	w := startWatcher(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("the story"), 0644))

	for {
		s := next(t, w)
		require.NotEqual(t, "ignore me", s.Text)
		if s.Text == "the story" {
			break
		}
	}
}

func TestFileWatcher_DropsWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	w, err := New(path, testDebounce, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer w.Stop()

	for i := 0; i < eventChannelBuffer+2; i++ {
		w.sendEvent(Snapshot{Path: path})
	}
	assert.Equal(t, int64(2), w.DroppedEvents())
}

// A snapshot that finds the channel full is retried rather than lost:
// the content is not remembered as sent, so the next flush emits it.
func TestFileWatcher_RetriesDroppedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(path, []byte("a robot walks"), 0644))
	w, err := New(path, testDebounce, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer w.Stop()

	for range eventChannelBuffer {
		require.True(t, w.sendEvent(Snapshot{Path: path, Text: "filler"}))
	}

	w.markPending()
	w.flushPending()
	assert.Equal(t, int64(1), w.DroppedEvents())
	assert.Empty(t, w.lastHash, "dropped content is not recorded as sent")
	assert.True(t, w.pending, "file is marked for another read")

	for range eventChannelBuffer {
		<-w.events
	}
	w.flushPending()

	s := <-w.events
	assert.Equal(t, "a robot walks", s.Text)
	assert.Equal(t, ir.TextHash("a robot walks"), s.Hash)
	assert.Equal(t, s.Hash, w.lastHash)
	assert.False(t, w.pending)
}

func TestFileWatcher_Removed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(path, []byte("here"), 0644))
	w := startWatcher(t, path)
	next(t, w)

	require.NoError(t, os.Remove(path))
	s := next(t, w)
	assert.True(t, s.Removed)
	assert.Empty(t, s.Text)
}

func TestFileWatcher_StopClosesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.txt")
	w, err := New(path, testDebounce, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed after Stop")
	}
}
