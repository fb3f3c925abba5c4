package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-meetsync/internal/watch"
)

// Notes:
// - Uses a real fsnotify watcher on t.TempDir(); settle and poll are
//   shortened to keep the suite fast.
// - Each test gives the watcher a moment to register before writing files.

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type recorder struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recorder) handle(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	return r.err
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, dir string, handle watch.Handler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := watch.New(dir, watch.WithSettle(50*time.Millisecond), watch.WithPoll(10*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, handle) }()
	time.Sleep(50 * time.Millisecond)
	t.Cleanup(cancel)
	return cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// TestWatcher_Run
// ---------------------------------------------------------------------------

func TestWatcher_Run(t *testing.T) {
	t.Parallel()

	t.Run("handles settled videos once", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		rec := &recorder{}
		cancel, done := startWatcher(t, dir, rec.handle)

		write(t, filepath.Join(dir, "b.mp4"))
		write(t, filepath.Join(dir, "notes.txt"))
		write(t, filepath.Join(dir, ".partial.mp4"))
		write(t, filepath.Join(dir, "a.MOV"))

		waitFor(t, func() bool { return len(rec.seen()) == 2 })
		time.Sleep(100 * time.Millisecond)
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}

		got := rec.seen()
		if len(got) != 2 {
			t.Fatalf("handled = %v, want 2 videos", got)
		}
		for _, name := range got {
			if name != "a.MOV" && name != "b.mp4" {
				t.Errorf("unexpected file handled: %s", name)
			}
		}
	})

	t.Run("handler errors do not stop watching", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		rec := &recorder{err: errors.New("bad media")}
		cancel, done := startWatcher(t, dir, rec.handle)

		write(t, filepath.Join(dir, "one.mp4"))
		waitFor(t, func() bool { return len(rec.seen()) == 1 })
		write(t, filepath.Join(dir, "two.mp4"))
		waitFor(t, func() bool { return len(rec.seen()) == 2 })

		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})

	t.Run("canceled handler stops the watcher", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		rec := &recorder{err: context.Canceled}
		_, done := startWatcher(t, dir, rec.handle)

		write(t, filepath.Join(dir, "one.mp4"))
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run() error = %v, want context.Canceled", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("watcher did not stop")
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		w := watch.New(filepath.Join(t.TempDir(), "nope"))
		if err := w.Run(context.Background(), func(string) error { return nil }); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}
