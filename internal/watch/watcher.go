package watch

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last event before
// rebuilding.
const DefaultDebounce = 2 * time.Second

// Warmer builds whatever the current data directory describes.
type Warmer interface {
	Warm(ctx context.Context) error
}

// WarmFunc adapts a function to Warmer.
type WarmFunc func(ctx context.Context) error

// Warm calls f.
func (f WarmFunc) Warm(ctx context.Context) error { return f(ctx) }

// Watcher monitors the data directory and rebuilds the snapshot after input
// files change, so the next request hits the cache.
type Watcher struct {
	dir      string
	denyList string
	warmer   Warmer
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// New returns a watcher for dir. denyList is watched too when it lives
// outside dir; it may be empty.
func New(dir, denyList string, warmer Warmer) *Watcher {
	return &Watcher{dir: dir, denyList: denyList, warmer: warmer, debounce: DefaultDebounce}
}

// WithDebounce overrides the quiet period.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Start begins watching until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	if w.denyList != "" {
		if parent := filepath.Dir(w.denyList); filepath.Clean(parent) != filepath.Clean(w.dir) {
			if err := watcher.Add(parent); err != nil {
				log.Printf("[WARNING] Not watching %s: %v", parent, err)
			}
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				w.stop()
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if w.relevant(evt) {
					w.schedule(ctx)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	log.Printf("👀 Watching %s for data changes", w.dir)
	return nil
}

func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if w.denyList != "" && filepath.Clean(evt.Name) == filepath.Clean(w.denyList) {
		return true
	}
	switch strings.ToLower(filepath.Ext(evt.Name)) {
	case ".csv", ".json", ".yaml", ".yml":
		return filepath.Clean(filepath.Dir(evt.Name)) == filepath.Clean(w.dir)
	default:
		return false
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.warmer.Warm(ctx); err != nil {
			log.Printf("❌ Rebuild after data change failed: %v", err)
		}
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
