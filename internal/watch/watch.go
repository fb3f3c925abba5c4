// Package watch hands over files that land in a directory once they stop
// changing, one at a time.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Defaults for settle detection.
const (
	DefaultSettle = 3 * time.Second
	DefaultPoll   = 500 * time.Millisecond
)

// VideoExtensions lists the recording formats picked up by default.
var VideoExtensions = []string{".mp4", ".mkv", ".mov", ".webm", ".avi", ".m4v"}

// Handler processes one settled file. Returning an error that wraps
// context.Canceled stops the watcher; other errors are logged.
type Handler func(path string) error

// Watcher reports files created in a directory once no write event has
// touched them for the settle period.
type Watcher struct {
	dir    string
	settle time.Duration
	poll   time.Duration
	match  func(name string) bool
	log    logrus.FieldLogger
	now    func() time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must stay quiet before it is handled.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithPoll sets how often pending files are checked.
func WithPoll(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithExtensions restricts handled files to the given extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) { w.match = extensionMatcher(exts) }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a Watcher for dir.
func New(dir string, opts ...Option) *Watcher {
	l := logrus.New()
	l.SetOutput(io.Discard)
	w := &Watcher{
		dir:    dir,
		settle: DefaultSettle,
		poll:   DefaultPoll,
		match:  extensionMatcher(VideoExtensions),
		log:    l,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func extensionMatcher(exts []string) func(string) bool {
	return func(name string) bool {
		base := filepath.Base(name)
		if strings.HasPrefix(base, ".") {
			return false
		}
		ext := strings.ToLower(filepath.Ext(base))
		return slices.Contains(exts, ext)
	}
}

// Run watches until ctx is canceled, which is a normal stop. Files are
// handled sequentially in name order; each path is handled at most once
// unless it is removed and created again.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot start file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("cannot watch %s: %w", w.dir, err)
	}
	w.log.WithField("dir", w.dir).Info("watching for recordings")

	pending := make(map[string]time.Time)
	handled := make(map[string]bool)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			switch {
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
				delete(handled, ev.Name)
			case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
				if w.match(ev.Name) && !handled[ev.Name] {
					pending[ev.Name] = w.now()
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("file watcher error")

		case <-ticker.C:
			for _, path := range w.settled(pending) {
				if ctx.Err() != nil {
					return nil
				}
				delete(pending, path)
				handled[path] = true

				w.log.WithField("file", filepath.Base(path)).Info("recording settled")
				if err := handle(path); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					w.log.WithError(err).WithField("file", filepath.Base(path)).Error("recording failed")
				}
			}
		}
	}
}

// settled returns pending paths quiet for the settle period, sorted.
func (w *Watcher) settled(pending map[string]time.Time) []string {
	now := w.now()
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
		}
	}
	slices.Sort(ready)
	return ready
}
