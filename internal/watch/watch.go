// Package watch refreshes file-backed catalog sources when their database
// file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// DefaultDebounce is the quiet period after the last write before a
// change is reported.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes of database files per source.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(core.SourceID)
	debounce time.Duration

	mu     sync.Mutex
	files  map[string]core.SourceID // absolute database path -> source
	timers map[core.SourceID]*time.Timer
}

// New creates a watcher calling onChange once per burst of writes.
func New(logger *slog.Logger, onChange func(core.SourceID)) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		logger:   logger,
		onChange: onChange,
		debounce: DefaultDebounce,
		files:    make(map[string]core.SourceID),
		timers:   make(map[core.SourceID]*time.Timer),
	}, nil
}

// SetDebounce changes the quiet period. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Add watches the database file of source. The parent directory is
// watched so that journal files and atomic replacements are seen.
func (w *Watcher) Add(source core.SourceID, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w.mu.Lock()
	w.files[abs] = source
	w.mu.Unlock()

	w.logger.Debug("watching database file", slog.String("source", string(source)), slog.String("path", abs))
	return nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if source, ok := w.sourceFor(event.Name); ok {
				w.schedule(source, event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", slog.Any("error", err))
		}
	}
}

// sourceFor maps a changed file to its source. SQLite and DuckDB write
// companion files (-wal, -journal, .wal) next to the database.
func (w *Watcher) sourceFor(name string) (core.SourceID, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, source := range w.files {
		if abs == path || strings.HasPrefix(abs, path+"-") || strings.HasPrefix(abs, path+".") {
			return source, true
		}
	}
	return "", false
}

func (w *Watcher) schedule(source core.SourceID, file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[source]; ok {
		t.Stop()
	}
	w.timers[source] = time.AfterFunc(w.debounce, func() {
		w.logger.Debug("database file changed", slog.String("source", string(source)), slog.String("file", file))
		w.onChange(source)
	})
}

// Close stops watching and cancels pending notifications.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for source, t := range w.timers {
		t.Stop()
		delete(w.timers, source)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
