package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

// DefaultDebounceInterval is how long Watcher waits after the last observed
// write before invoking OnChange, collapsing the burst of events most
// editors and config-management tools generate for a single logical save.
const DefaultDebounceInterval = 500 * time.Millisecond

// Watcher watches a single configuration file for changes and invokes
// OnChange, debounced, whenever it is rewritten. The daemon uses it to
// reload its config file on change, through the same reload function its
// "config_reload" RPC calls.
type Watcher struct {
	path      string
	debounce  time.Duration
	onChange  func()

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for path. onChange is invoked on its own
// goroutine after the debounce period elapses.
func NewWatcher(path string, onChange func()) *Watcher {
	return &Watcher{path: path, debounce: DefaultDebounceInterval, onChange: onChange}
}

// Start begins watching the file's parent directory (fsnotify does not
// reliably track a single path across editor rename-and-replace saves).
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(w.path)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return err
	}

	w.fsWatcher = fsWatcher
	w.stopCh = make(chan struct{})
	w.running = true

	eventsCh := fsWatcher.Events
	errorsCh := fsWatcher.Errors
	go w.processEvents(eventsCh, errorsCh)

	logging.Info("ConfigWatcher", "watching %s for changes", w.path)
	return nil
}

func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	target := filepath.Base(w.path)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.triggerDebounced()
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "fsnotify error watching %s", w.path)
		}
	}
}

func (w *Watcher) triggerDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.onChange)
}

// Stop halts the watcher. Safe to call even if Start was never called.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	w.fsWatcher.Close()
	w.running = false
}
