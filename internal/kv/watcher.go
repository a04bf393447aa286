package kv

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher invalidates Store mirror entries whenever the file behind a key
// is changed on disk, whether by this process or another one.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

func NewWatcher(store *Store, backend *FileBackend, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(backend.Dir()); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", backend.Dir(), err)
	}
	return &Watcher{
		store:   store,
		watcher: w,
		logger:  logger.Named("kv.watcher"),
	}, nil
}

// Run blocks until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
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
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// Close releases the OS watcher, which also ends Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	key, ok := keyFromPath(event.Name)
	if !ok {
		return
	}
	w.logger.Debug("invalidate", zap.String("key", key), zap.String("op", event.Op.String()))
	w.store.Invalidate(key)
}
