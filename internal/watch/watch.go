// Package watch re-runs a function whenever files under a target root change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/NielsdaWheelz/vchain/internal/locate"
)

// DefaultDebounce is how long the tree must be quiet before a re-run.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory tree, skipping the same directories the
// artifact scan skips.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *zap.Logger
	ignore   func(path string) bool
	fsw      *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithIgnore drops events for paths the predicate matches (for example the
// run's own report and event files).
func WithIgnore(fn func(path string) bool) Option {
	return func(w *Watcher) { w.ignore = fn }
}

// New starts watching root and every non-skipped directory below it.
// Call Run to consume events; Run closes the watcher.
func New(root string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		ignore:   func(string) bool { return false },
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree adds dir and its non-skipped subdirectories. Unreadable
// subdirectories are logged and left unwatched.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			w.logger.Debug("watch: skipping unreadable directory", zap.String("path", p), zap.Error(err))
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && locate.SkipDir(d.Name()) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			if p == dir {
				return err
			}
			w.logger.Debug("watch: failed to add directory", zap.String("path", p), zap.Error(err))
		}
		return nil
	})
}

// Run calls fn once, then again after each debounced batch of changes, until
// ctx is done. Calls to fn never overlap. Run returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context)) error {
	defer w.fsw.Close()

	fn(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("watch: change", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watch: failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch: watcher error", zap.Error(err))

		case <-timer.C:
			pending = false
			fn(ctx)
		}
	}
}

func (w *Watcher) relevant(e fsnotify.Event) bool {
	if e.Op == fsnotify.Chmod {
		return false
	}
	if w.ignore(e.Name) {
		return false
	}
	rel, err := filepath.Rel(w.root, e.Name)
	if err != nil {
		return true
	}
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return false
	}
	for dir := rel; dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if locate.SkipDir(filepath.Base(dir)) {
			return false
		}
	}
	return true
}
