// Package watcher watches inbox directories with fsnotify and hands settled files to a Sink.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Inbox watches root directories and reports created, changed, and removed report files.
type Inbox struct {
	roots      []string
	extensions []string
	recursive  bool
	sink       Sink
	debounce   time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	ctx       context.Context
	fsw       *fsnotify.Watcher
	pending   map[string]*time.Timer
	rootPaths map[string][]string // root -> directories added to fsw for it
	done      chan struct{}
	started   bool
	stopOnce  sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Inbox) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is handed to the sink.
func WithDebounce(d time.Duration) Option {
	return func(w *Inbox) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates an inbox over roots. extensions filters files (empty = all).
func New(roots, extensions []string, recursive bool, sink Sink, opts ...Option) *Inbox {
	w := &Inbox{
		roots:      append([]string(nil), roots...),
		extensions: extensions,
		recursive:  recursive,
		sink:       sink,
		debounce:   defaultDebounce,
		pending:    make(map[string]*time.Timer),
		rootPaths:  make(map[string][]string),
		done:       make(chan struct{}),
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start begins watching. Missing roots are created. It returns immediately;
// events are processed until ctx is cancelled or Stop is called.
func (w *Inbox) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	w.logger.Debug("inbox starting", zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return err
		}
	}
	w.started = true
	go w.run(ctx, fsw.Events, fsw.Errors)
	return nil
}

func (w *Inbox) run(ctx context.Context, events <-chan fsnotify.Event, errors <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errors:
			if !ok {
				return
			}
			w.logger.Debug("inbox watch error", zap.Error(err))
		}
	}
}

func (w *Inbox) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if matchExtension(path, w.extensions) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		if matchExtension(path, w.extensions) {
			w.sink.FileRemoved(w.context(), path)
		}
	}
}

// handleNewDirectory watches a directory that appeared under a root and ingests what it holds.
func (w *Inbox) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if w.recursive {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if err := fsw.Add(path); err != nil {
					w.logger.Debug("inbox failed to add directory", zap.String("path", path), zap.Error(err))
				}
			}
			return nil
		})
	} else if err := fsw.Add(dir); err != nil {
		w.logger.Debug("inbox failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	w.syncDirectory(dir)
}

func (w *Inbox) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx
}

func (w *Inbox) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// schedule hands path to the sink once it has been quiet for the debounce period.
func (w *Inbox) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		w.sink.FileChanged(ctx, path)
	})
}

func (w *Inbox) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// AddDirectory adds a root to watch and optionally ingests the files already in it.
func (w *Inbox) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	w.logger.Debug("inbox directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Inbox) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var paths []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			if err := w.fsw.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	w.rootPaths[root] = paths
	return nil
}

func (w *Inbox) syncDirectory(root string) {
	ctx := w.context()
	w.logger.Debug("inbox syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !w.recursive && filepath.Dir(path) != filepath.Clean(root) {
			return nil
		}
		if matchExtension(path, w.extensions) {
			w.sink.FileChanged(ctx, path)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Reports already ingested from it are kept.
func (w *Inbox) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	for i, r := range w.roots {
		if filepath.Clean(r) != abs {
			continue
		}
		for _, p := range w.rootPaths[abs] {
			_ = w.fsw.Remove(p)
		}
		delete(w.rootPaths, abs)
		w.roots = append(w.roots[:i], w.roots[i+1:]...)
		w.logger.Debug("inbox directory removed", zap.String("path", abs))
		return nil
	}
	return nil
}

// Directories returns a copy of the watched roots.
func (w *Inbox) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExisting ingests every matching file already present in the roots.
// Call it after Start.
func (w *Inbox) SyncExisting() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stop stops watching and drops pending events.
func (w *Inbox) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
