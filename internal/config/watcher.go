package config

// Hot reloading of the engine overlay file, primarily for tuning thresholds
// in development without a restart.

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the engine overlay file and hot reloads it.
type Watcher struct {
	config    *Config
	callbacks []func(*Config)
	mu        sync.RWMutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewWatcher creates a watcher over the engine overlay file. When the config
// carries no overlay path the watcher is inert.
func NewWatcher(initial *Config, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		config:    initial,
		callbacks: make([]func(*Config), 0),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	if initial.EngineConfigPath == "" {
		logger.Info("engine config hot reloading disabled, no overlay path configured")
		return w, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(initial.EngineConfigPath); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", initial.EngineConfigPath, err)
	}
	w.watcher = fsWatcher

	go w.watchLoop()

	logger.Info("engine config hot reloading enabled",
		zap.String("path", initial.EngineConfigPath),
	)
	return w, nil
}

// OnReload registers a callback invoked with the new config after a reload.
func (w *Watcher) OnReload(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Current returns the latest loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.stopCh)
}

func (w *Watcher) watchLoop() {
	defer w.watcher.Close()

	// Editors fire several events per save; debounce them.
	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()

	updated := *w.config
	if err := updated.applyOverlay(w.config.EngineConfigPath); err != nil {
		w.mu.Unlock()
		w.logger.Warn("failed to reload engine config, keeping previous values", zap.Error(err))
		return
	}
	if err := updated.Validate(); err != nil {
		w.mu.Unlock()
		w.logger.Warn("reloaded engine config is invalid, keeping previous values", zap.Error(err))
		return
	}

	w.config = &updated
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("engine config reloaded",
		zap.Float64("default_min_similarity", updated.Engine.DefaultMinSimilarity),
		zap.Int("candidate_pool_size", updated.Engine.CandidatePoolSize),
	)
	for _, callback := range callbacks {
		callback(w.config)
	}
}
