// Package signal lets a second process abort a running session by dropping a
// file into the session's signals directory.
package signal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/replica/internal/runlog"
)

// AbortFile is the name of the abort signal inside the signals directory.
const AbortFile = "abort"

// pollInterval is used when no filesystem watcher is available.
const pollInterval = 500 * time.Millisecond

// Watcher watches a signals directory and calls onAbort once when the abort
// file appears.
type Watcher struct {
	dir     string
	onAbort func()

	mu      sync.RWMutex
	aborted bool
	once    sync.Once

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  sync.Once
}

// NewWatcher creates the signals directory and starts watching it. If the
// abort file already exists, onAbort fires immediately.
func NewWatcher(dir string, onAbort func()) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:     dir,
		onAbort: onAbort,
		done:    make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(dir); err != nil {
			watcher.Close()
		}
	}
	if err != nil {
		runlog.Logf("[signal] fsnotify unavailable, polling %s: %v", dir, err)
		go w.poll()
	} else {
		w.watcher = watcher
		go w.watch()
	}

	w.Aborted()
	return w, nil
}

// WithAbort returns a context that is cancelled when the abort signal appears
// in dir. The returned stop function releases the watcher and the context.
func WithAbort(parent context.Context, dir string) (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(parent)
	w, err := NewWatcher(dir, cancel)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return ctx, func() {
		w.Close()
		cancel()
	}, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == AbortFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.trigger()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			runlog.Logf("[signal] watcher error: %v", err)
		}
	}
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.Aborted()
		}
	}
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	w.aborted = true
	w.mu.Unlock()

	w.once.Do(func() {
		runlog.Logf("[signal] abort requested")
		if w.onAbort != nil {
			w.onAbort()
		}
	})
}

// Aborted reports whether an abort was requested. The file is checked
// directly in case the watcher missed the event.
func (w *Watcher) Aborted() bool {
	if _, err := os.Stat(filepath.Join(w.dir, AbortFile)); err == nil {
		w.trigger()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.aborted
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() {
	w.closed.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// SendAbort asks the session owning dir to stop at its next state transition.
func SendAbort(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, AbortFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes a pending abort signal.
func Clear(dir string) error {
	err := os.Remove(filepath.Join(dir, AbortFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
