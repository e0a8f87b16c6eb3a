package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/getmockd/chaoskit/pkg/logging"
)

// DefaultDebounce is how long the Watcher waits after the last change before
// reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a policy file when it changes and hands every successfully
// hydrated config to apply. A reload that fails keeps the previous config in
// place; the failure is logged and passed to the error callback.
type Watcher struct {
	path     string
	apply    func(*ChaosConfig)
	onError  func(error)
	hydrate  []HydrateOption
	logger   *slog.Logger
	debounce time.Duration

	fsw *fsnotify.Watcher
	mu  sync.Mutex
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithHydrateOptions passes options to every Hydrate call.
func WithHydrateOptions(opts ...HydrateOption) WatcherOption {
	return func(w *Watcher) {
		w.hydrate = append(w.hydrate, opts...)
	}
}

// WithErrorHandler is called with every failed reload.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// NewWatcher watches the directory holding path, so editors that replace the
// file by rename are still seen.
func NewWatcher(path string, apply func(*ChaosConfig), opts ...WatcherOption) (*Watcher, error) {
	if apply == nil {
		return nil, fmt.Errorf("watcher requires an apply function")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	w := &Watcher{
		path:     abs,
		apply:    apply,
		logger:   logging.Nop(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}
	w.fsw = fsw
	return w, nil
}

// Reload loads the file now and applies it on success.
func (w *Watcher) Reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, err := Load(w.path, w.hydrate...)
	if err != nil {
		w.logger.Error("policy reload failed, keeping previous config", "path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return err
	}
	w.apply(cfg)
	w.logger.Info("policy reloaded", "path", w.path, "enabled", cfg.Enabled)
	return nil
}

// Run blocks until ctx is cancelled, reloading after each burst of changes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounce, func() {
				_ = w.Reload()
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
