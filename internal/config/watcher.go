package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the configuration file for changes. Editors and config
// management tools often replace the file instead of writing in place, so the
// parent directory is watched too and the file re-armed after rename/create.
type Watcher struct {
	logger  *zap.Logger
	path    string
	watcher *fsnotify.Watcher

	ctx     context.Context
	cancel  context.CancelFunc
	running bool

	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	onChange func()
}

// NewWatcher creates a watcher for the file at path.
func NewWatcher(logger *zap.Logger, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		logger:   logger,
		path:     path,
		watcher:  fw,
		ctx:      ctx,
		cancel:   cancel,
		debounce: time.Second,
	}, nil
}

// Start begins watching and calls onChange (debounced) after modifications.
func (w *Watcher) Start(onChange func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.onChange = onChange

	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("failed to watch file %s: %w", w.path, err)
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Warn("failed to watch config directory",
			zap.String("dir", filepath.Dir(w.path)),
			zap.Error(err),
		)
	}

	w.running = true
	go w.handleEvents()

	w.logger.Info("configuration watcher started", zap.String("path", w.path))
	return nil
}

// Stop halts the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.cancel()
	w.watcher.Close()
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}

			switch {
			case event.Op&fsnotify.Write == fsnotify.Write:
				w.scheduleReload()
			case event.Op&fsnotify.Create == fsnotify.Create:
				w.watcher.Add(w.path)
				w.scheduleReload()
			case event.Op&fsnotify.Rename == fsnotify.Rename:
				go func() {
					time.Sleep(100 * time.Millisecond)
					w.watcher.Add(w.path)
				}()
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				w.logger.Warn("config file removed", zap.String("path", event.Name))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Info("reloading configuration", zap.String("path", w.path))
		if w.onChange != nil {
			w.onChange()
		}
	})
}
