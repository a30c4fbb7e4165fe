// ABOUTME: File watcher for the audio cache
// ABOUTME: Invalidates cached buffers when their source files change
package cache

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cache entries whose source files change.
type Watcher struct {
	watcher *fsnotify.Watcher
	cache   *Cache
	logger  *slog.Logger
	done    chan struct{}

	mu      sync.Mutex
	running bool
	dirs    map[string]bool
}

// NewWatcher creates a watcher for cache. Call Start to begin watching.
func NewWatcher(cache *Cache, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: watcher,
		cache:   cache,
		logger:  logger,
		done:    make(chan struct{}),
		dirs:    make(map[string]bool),
	}, nil
}

// Start begins the watch loop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.running = true

	go w.watch()
	return nil
}

// Track watches the directory containing path (more reliable for editors
// that replace files on save).
func (w *Watcher) Track(path string) error {
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

func (w *Watcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if w.cache.Invalidate(event.Name) {
					w.logger.Debug("source file changed, invalidated cached audio", "file", event.Name, "op", event.Op.String())
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("cache watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// Stop stops the watch loop.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return w.watcher.Close()
	}

	w.running = false
	close(w.done)
	return w.watcher.Close()
}
