// Package watcher follows store changes on disk and triggers a debounced
// reload of everything derived from the store.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/onto/internal/storage"
)

// Event kinds passed to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// DefaultDebounce is the quiet period after the last change before a reload runs.
const DefaultDebounce = 200 * time.Millisecond

// EventCallback is called for every storage file change, before the reload.
type EventCallback func(kind string, path string)

// ReloadFunc rebuilds state derived from the store. It is called once per
// burst of changes.
type ReloadFunc func(ctx context.Context) error

// Watcher watches a store root recursively.
type Watcher struct {
	root     string
	reload   ReloadFunc
	onEvent  EventCallback
	ignored  func(rel string) bool
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithEventCallback sets the per-file callback.
func WithEventCallback(cb EventCallback) Option {
	return func(w *Watcher) { w.onEvent = cb }
}

// WithIgnore skips store-relative paths for which fn returns true.
func WithIgnore(fn func(rel string) bool) Option {
	return func(w *Watcher) { w.ignored = fn }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New returns a Watcher over root that calls reload after changes settle.
func New(root string, reload ReloadFunc, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		reload:   reload,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes file change events until ctx is cancelled.
//
// New directories created at runtime are added to the watch list and the
// storage files already inside them are reported as created. Renames arrive
// as a delete of the old path; the new path shows up as its own create.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("root", w.root))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(w.debounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-reloadCh:
			if err := w.reload(ctx); err != nil {
				w.logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
			} else {
				w.logger.Debug("watcher: reloaded")
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						w.logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					if w.reportDir(ev.Name) > 0 {
						scheduleReload()
					}
					continue
				}
			}

			rel, ok := w.relevant(ev.Name)
			if !ok {
				continue
			}

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = EventCreated
			case ev.Op&fsnotify.Write != 0:
				kind = EventUpdated
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				kind = EventDeleted
			default:
				continue
			}
			w.logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
			w.emit(kind, rel)
			scheduleReload()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant maps an absolute path to its store-relative form when it names a
// storage file that is not ignored.
func (w *Watcher) relevant(abs string) (string, bool) {
	if !storage.IsStorageFile(abs) {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.ignored != nil && w.ignored(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) emit(kind, rel string) {
	if w.onEvent != nil {
		w.onEvent(kind, rel)
	}
}

// reportDir emits created events for the storage files found in a newly
// created directory and returns how many there were.
func (w *Watcher) reportDir(dir string) int {
	n := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.relevant(path); ok {
			w.emit(EventCreated, rel)
			n++
		}
		return nil
	})
	return n
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
