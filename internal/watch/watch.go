// Package watch re-indexes linked PDF files when they change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of events on
// the same files to settle.
const DefaultDebounce = 500 * time.Millisecond

// Target applies file changes. *indexing.Manager satisfies it.
type Target interface {
	ReindexFiles(ctx context.Context, paths ...string) error
	RemoveFiles(ctx context.Context, paths ...string) error
}

// Watcher watches file directories recursively and forwards changes to
// PDF files to a Target.
type Watcher struct {
	dirs     []string
	target   Target
	debounce time.Duration
	logger   *slog.Logger
	ready    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the settle delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher over dirs.
func New(dirs []string, target Target, opts ...Option) *Watcher {
	w := &Watcher{
		dirs:     dirs,
		target:   target,
		debounce: DefaultDebounce,
		logger:   slog.Default().With("component", "watch"),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready is closed once every directory is watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. It must be called once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	for _, dir := range w.dirs {
		w.addTree(fw, dir)
	}
	close(w.ready)
	w.logger.Info("watching file directories", "dirs", len(w.dirs))

	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				w.addTree(fw, ev.Name)
				continue
			}
			if !isPDF(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
				pending[ev.Name] = fsnotify.Write
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				pending[ev.Name] = fsnotify.Remove
			default:
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)

		case <-timer.C:
			w.flush(ctx, pending)
			clear(pending)
		}
	}
}

// flush applies the latest operation seen for each path.
func (w *Watcher) flush(ctx context.Context, pending map[string]fsnotify.Op) {
	var changed, removed []string
	for path, op := range pending {
		if op == fsnotify.Remove {
			removed = append(removed, path)
		} else {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	sort.Strings(removed)

	if len(removed) > 0 {
		if err := w.target.RemoveFiles(ctx, removed...); err != nil {
			w.logger.Error("remove files failed", "files", len(removed), "error", err)
		}
	}
	if len(changed) > 0 {
		if err := w.target.ReindexFiles(ctx, changed...); err != nil {
			w.logger.Error("reindex files failed", "files", len(changed), "error", err)
		}
	}
	w.logger.Debug("file changes applied", "changed", len(changed), "removed", len(removed))
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				w.logger.Warn("failed to watch directory", "dir", path, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to walk directory", "dir", root, "error", err)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
