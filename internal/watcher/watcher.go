// Package watcher reloads the catalog when its source file changes, using
// fsnotify with debouncing.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/models"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher watches one catalog file and invokes a callback after it settles.
// The parent directory is watched rather than the file itself so that editors
// and tools that replace the file by rename are still seen.
type Watcher struct {
	path     string
	dir      string
	names    map[string]struct{}
	onChange func(ctx context.Context, path string)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long the file must be quiet before onChange runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for the catalog at path. onChange runs once per
// burst of writes. SQLite companions (-wal, -journal) count as the file.
func NewWatcher(path string, onChange func(ctx context.Context, path string), opts ...WatcherOption) *Watcher {
	clean := filepath.Clean(path)
	if abs, err := filepath.Abs(clean); err == nil {
		clean = abs
	}
	base := filepath.Base(clean)
	w := &Watcher{
		path: clean,
		dir:  filepath.Dir(clean),
		names: map[string]struct{}{
			base:              {},
			base + "-wal":     {},
			base + "-journal": {},
		},
		onChange: onChange,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the watched catalog path.
func (w *Watcher) Path() string { return w.path }

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if _, err := os.Stat(w.dir); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	w.started = true
	w.logger.Debug("watcher starting", zap.String("path", w.path), zap.Duration("debounce", w.debounce))
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !w.matches(ev.Name) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ctx)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// The published catalog stays in place until a replacement appears.
		if filepath.Clean(ev.Name) == w.path {
			w.logger.Info("catalog file removed; keeping current catalog", zap.String("path", w.path))
		}
	}
}

func (w *Watcher) matches(name string) bool {
	if filepath.Dir(filepath.Clean(name)) != w.dir {
		return false
	}
	_, ok := w.names[filepath.Base(name)]
	return ok
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		running := w.started
		w.mu.Unlock()
		if !running || ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(w.path); err != nil {
			w.logger.Debug("catalog not present after change", zap.String("path", w.path), zap.Error(err))
			return
		}
		w.logger.Debug("catalog changed (debounced)", zap.String("path", w.path))
		if w.onChange != nil {
			w.onChange(ctx, w.path)
		}
	})
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

// Reloader is the part of the engine the watcher drives.
type Reloader interface {
	Reload(ctx context.Context) (*models.CatalogStatus, error)
}

// ReloadFunc returns an onChange callback that reloads r and logs the outcome.
// A failed reload leaves the previously published catalog in place.
func ReloadFunc(r Reloader, logger *zap.Logger) func(ctx context.Context, path string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, path string) {
		status, err := r.Reload(ctx)
		if err != nil {
			logger.Warn("catalog reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("catalog reloaded",
			zap.String("path", path),
			zap.String("snapshot", status.SnapshotID),
			zap.Int("movies", status.Movies),
		)
	}
}
