package media

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher keeps the existence cache honest when files under the upload
// directory change behind the server's back.
type Watcher struct {
	mu      sync.Mutex
	store   *Store
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	events  func(fsnotify.Event)
	running bool
}

func NewWatcher(store *Store, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{store: store, watcher: fw, logger: logger}, nil
}

// Run watches the upload root and its kind folders until ctx is done, then
// closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()
	defer w.watcher.Close()

	if err := w.addTree(w.store.Root()); err != nil {
		return err
	}
	w.logger.Info("watching uploads", zap.String("dir", w.store.Root()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			// overflowed or failed; forget everything rather than serve stale answers
			w.logger.Warn("upload watcher error", zap.Error(err))
			w.store.Purge()
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("watch new upload dir", zap.String("dir", event.Name), zap.Error(err))
			}
		}
	}
	w.store.Invalidate(event.Name)
	w.logger.Debug("upload changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	hook := w.events
	w.mu.Unlock()
	if hook != nil {
		hook(event)
	}
}
