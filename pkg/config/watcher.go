package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a configuration file for changes and triggers a reload
// callback.
type Watcher struct {
	configPath   string
	watcher      *fsnotify.Watcher
	reloadFunc   func(string) error
	logger       *slog.Logger
	mu           sync.RWMutex
	running      bool
	stopCh       chan struct{}
	debounceTime time.Duration
}

// NewWatcher creates a new configuration file watcher.
func NewWatcher(configPath string, reloadFunc func(string) error, logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		configPath:   configPath,
		watcher:      watcher,
		reloadFunc:   reloadFunc,
		logger:       logger,
		stopCh:       make(chan struct{}),
		debounceTime: 1 * time.Second, // Debounce multiple rapid changes
	}, nil
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory because some editors create temp files and
	// rename them over the original.
	configDir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(configDir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	w.logger.Info("config watcher started", "config_path", w.configPath)

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	return w.watcher.Close()
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// SetDebounce overrides the debounce interval. Intended for tests.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceTime = d
}

func (w *Watcher) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer

	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.isConfigFileEvent(event) {
				continue
			}

			w.logger.Debug("config file event detected",
				"event", event.Op.String(),
				"file", event.Name)

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {

				// Debounce rapid changes
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				w.mu.RLock()
				debounce := w.debounceTime
				w.mu.RUnlock()

				debounceTimer = time.AfterFunc(debounce, w.triggerReload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return

		case <-ctx.Done():
			w.logger.Info("config watcher context cancelled")
			return
		}
	}
}

// isConfigFileEvent checks if the event is for our configuration file.
func (w *Watcher) isConfigFileEvent(event fsnotify.Event) bool {
	eventPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}

	configPath, err := filepath.Abs(w.configPath)
	if err != nil {
		return false
	}

	return eventPath == configPath
}

func (w *Watcher) triggerReload() {
	w.logger.Info("config file changed, triggering reload", "config_path", w.configPath)

	start := time.Now()
	if err := w.reloadFunc(w.configPath); err != nil {
		w.logger.Error("config reload failed",
			"error", err,
			"duration", time.Since(start))
	} else {
		w.logger.Info("config reload completed",
			"duration", time.Since(start))
	}
}
