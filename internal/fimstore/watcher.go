package fimstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	watchEventBufferSize   = 256
	defaultDebounceTimeout = 100 * time.Millisecond
)

// ChangeHandler is called once per debounced filesystem change
type ChangeHandler func(path string)

// Watcher delivers realtime change notifications for the monitored
// directories. Bursts of events for the same path collapse into one call.
type Watcher struct {
	dirs            []string
	handler         ChangeHandler
	rawEvents       chan notify.EventInfo
	done            chan struct{}
	wg              sync.WaitGroup
	debounceMu      sync.Mutex
	debounceTimeout time.Duration
	timers          map[string]*time.Timer
}

func NewWatcher(dirs []string, handler ChangeHandler) *Watcher {
	return &Watcher{
		dirs:            dirs,
		handler:         handler,
		done:            make(chan struct{}),
		debounceTimeout: defaultDebounceTimeout,
		timers:          make(map[string]*time.Timer),
	}
}

// SetDebounceTimeout sets how long a path must stay quiet before the handler runs
func (w *Watcher) SetDebounceTimeout(timeout time.Duration) {
	w.debounceTimeout = timeout
}

func (w *Watcher) Start(ctx context.Context) error {
	w.rawEvents = make(chan notify.EventInfo, watchEventBufferSize)

	for _, dir := range w.dirs {
		recursive := filepath.Join(dir, "...")
		if err := notify.Watch(recursive, w.rawEvents, notify.All); err != nil {
			notify.Stop(w.rawEvents)
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		slog.Info("watcher start", "dir", dir)
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) Stop() {
	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()

	w.debounceMu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.debounceMu.Unlock()
	slog.Info("watcher stopped")
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			w.debounce(event.Path())
		}
	}
}

// debounce restarts the quiet timer of path
func (w *Watcher) debounce(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.timers[path]; exists {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounceTimeout, func() {
		w.flush(path)
	})
}

func (w *Watcher) flush(path string) {
	w.debounceMu.Lock()
	delete(w.timers, path)
	w.debounceMu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	slog.Debug("watcher event", "path", path)
	w.handler(path)
}
