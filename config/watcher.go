package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Callback is called with each successfully reloaded configuration.
type Callback func(*Config)

// ErrorCallback is called when a reload fails.
type ErrorCallback func(error)

// Watcher watches a configuration file for changes and triggers reloads.
// Rapid event bursts, as editors tend to produce on save, are debounced
// into a single reload.
type Watcher struct {
	path          string
	watcher       *fsnotify.Watcher
	callback      Callback
	errorCallback ErrorCallback
	logger        *zap.Logger
	debounceDelay time.Duration
	lastConfig    *Config
	mu            sync.RWMutex
	stopCh        chan struct{}
	stoppedCh     chan struct{}
	running       bool
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithErrorCallback sets the error callback for the watcher.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.errorCallback = callback
	}
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(path string, callback Callback, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          absPath,
		watcher:       fsWatcher,
		callback:      callback,
		debounceDelay: 100 * time.Millisecond,
		logger:        zap.NewNop(),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start loads the initial configuration and begins watching the file.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	// Watch the directory, not the file: editors replace files on save and
	// the inode-level watch would be lost.
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	w.logger.Info("started watching configuration file",
		zap.String("path", w.path),
	)

	go w.watch(ctx)

	return nil
}

// Stop stops watching the configuration file.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.watcher.Close()
}

// LastConfig returns the last successfully loaded configuration.
func (w *Watcher) LastConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastConfig
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped due to context cancellation")
			return

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			debounceTimer, debounceCh = w.handleFileEvent(event, debounceTimer, debounceCh)

		case <-debounceCh:
			debounceCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.handleWatchError(err)
		}
	}
}

func (w *Watcher) handleFileEvent(
	event fsnotify.Event,
	debounceTimer *time.Timer,
	debounceCh <-chan time.Time,
) (timer *time.Timer, ch <-chan time.Time) {
	if filepath.Clean(event.Name) != w.path {
		return debounceTimer, debounceCh
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return debounceTimer, debounceCh
	}

	w.logger.Debug("config file changed",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()),
	)

	if debounceTimer != nil {
		debounceTimer.Stop()
	}
	debounceTimer = time.NewTimer(w.debounceDelay)
	return debounceTimer, debounceTimer.C
}

func (w *Watcher) handleWatchError(err error) {
	w.logger.Error("config watcher error", zap.Error(err))
	if w.errorCallback != nil {
		w.errorCallback(err)
	}
}

func (w *Watcher) reload() {
	w.logger.Info("reloading configuration",
		zap.String("path", w.path),
	)

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("failed to load configuration", zap.Error(err))
		if w.errorCallback != nil {
			w.errorCallback(err)
		}
		return
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	w.logger.Info("configuration reloaded successfully")

	if w.callback != nil {
		w.callback(cfg)
	}
}

// ForceReload reloads the configuration immediately, outside the debounce
// path.
func (w *Watcher) ForceReload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	if w.callback != nil {
		w.callback(cfg)
	}

	return nil
}
