// Package watcher turns filesystem activity in a drop directory into
// debounced batches of file paths. A burst of writes (a multi-file copy,
// a download completing in chunks) becomes one batch instead of one
// classification request per event.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce is how long a batch collects before it is emitted.
	DefaultDebounce = 500 * time.Millisecond
	// batchChannelBuffer is the size of the outgoing batch channel.
	batchChannelBuffer = 16
)

// DefaultIgnore lists the junk files every drop directory accumulates.
func DefaultIgnore() []string {
	return []string{"**/.DS_Store", "**/._*"}
}

// Watcher watches one directory tree and emits debounced path batches.
type Watcher struct {
	dir      string
	debounce time.Duration
	ignore   []string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]struct{}

	batches chan []string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the batch collection window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore replaces the ignore patterns. Patterns are doublestar globs
// matched against the path relative to the watched directory.
func WithIgnore(patterns []string) Option {
	return func(w *Watcher) { w.ignore = patterns }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New creates a watcher over dir.
func New(dir string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		debounce: DefaultDebounce,
		ignore:   DefaultIgnore(),
		watcher:  fsw,
		logger:   slog.Default(),
		pending:  make(map[string]struct{}),
		batches:  make(chan []string, batchChannelBuffer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Batches returns the channel of debounced path batches. The channel is
// closed when the watcher stops.
func (w *Watcher) Batches() <-chan []string {
	return w.batches
}

// Start begins watching. The directory is created if missing.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	if err := w.addWatchesRecursive(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	go w.processEvents(ctx)

	w.logger.Info("Watching drop directory",
		slog.String("dir", w.dir),
		slog.Duration("debounce", w.debounce))
	return nil
}

// Stop stops the watcher. The batch channel is closed by the event loop.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.batches)
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
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	// Only additions and writes produce work; a removed file has nothing
	// left to classify.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	path := event.Name
	if info, err := os.Stat(path); err != nil {
		return
	} else if info.IsDir() {
		if event.Has(fsnotify.Create) {
			w.handleNewDirectory(path)
		}
		return
	}

	if w.ignored(path) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = struct{}{}
	w.pendingMu.Unlock()

	w.logger.Debug("File change detected", slog.String("path", path))
}

func (w *Watcher) handleNewDirectory(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range w.ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		// Patterns anchored with **/ should also match at the top level.
		if trimmed, found := strings.CutPrefix(pattern, "**/"); found {
			if ok, err := doublestar.Match(trimmed, rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	batch := make([]string, 0, len(w.pending))
	for path := range w.pending {
		batch = append(batch, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	sort.Strings(batch)

	select {
	case w.batches <- batch:
		w.logger.Info("Batch ready", slog.Int("files", len(batch)))
	default:
		w.logger.Warn("Batch channel full, dropping batch",
			slog.Int("files", len(batch)))
	}
}
