package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mcpbridge/pkg/logging"
)

const defaultWatchDebounce = 300 * time.Millisecond

// RegistryWatcher notices out-of-band edits to the registry file and calls
// onChange once per burst of filesystem events.
//
// The parent directory is watched rather than the file itself because
// FileStore replaces the file by rename, which drops inotify watches on the
// old inode.
type RegistryWatcher struct {
	mu sync.Mutex

	path     string
	debounce time.Duration
	onChange func(ctx context.Context)

	watcher *fsnotify.Watcher
	timer   *time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistryWatcher creates a watcher for the registry file at path.
func NewRegistryWatcher(path string, debounce time.Duration, onChange func(ctx context.Context)) *RegistryWatcher {
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &RegistryWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
	}
}

// Start begins watching. It is a no-op if already running.
func (w *RegistryWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.processEvents(loopCtx, watcher, w.done)

	logging.Info("ConfigWatcher", "Watching %s for registry changes", w.path)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *RegistryWatcher) Stop() {
	w.mu.Lock()
	watcher, cancel, done := w.watcher, w.cancel, w.done
	w.watcher, w.cancel, w.done = nil, nil, nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if watcher == nil {
		return
	}
	cancel()
	_ = watcher.Close()
	<-done
}

func (w *RegistryWatcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.Debug("ConfigWatcher", "Registry event %s", event.Op)
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "Filesystem watcher error")
		}
	}
}

func (w *RegistryWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange(ctx)
	})
}
