package auth

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the delay between the last file event and the reload.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads local credentials whenever the daemon rewrites its auth
// file, which happens each time the daemon starts.
//
// The parent directory is watched rather than the file itself so that
// replace-by-rename writes are observed as well.
type Watcher struct {
	path     string
	onChange func(Credentials)
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	current string
	timer   *time.Timer

	// cbMu is held while onChange runs.
	cbMu   sync.Mutex
	closed bool

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
	stopped   chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger used for watch diagnostics.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher starts watching the auth file at path. onChange is called from
// the watcher goroutine with the new credentials whenever the file content
// differs from what was last seen. initial is the content already in use.
func NewWatcher(path string, initial Credentials, onChange func(Credentials), opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		onChange: onChange,
		debounce: DefaultDebounce,
		watcher:  fw,
		current:  initial.AuthFileContent,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	go w.eventLoop()
	return w, nil
}

// Path returns the watched file path.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops the watcher and waits for a running callback to return. No
// callbacks run after Close returns. Must not be called from onChange.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.watcher.Close()
		<-w.stopped

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		w.cbMu.Lock()
		w.closed = true
		w.cbMu.Unlock()
	})
	return w.closeErr
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("auth file watch error", "path", w.path, "error", err)
			}
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	creds, err := LoadLocal(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Debug("auth file not readable after change", "path", w.path, "error", err)
		}
		return
	}

	w.mu.Lock()
	changed := creds.AuthFileContent != w.current
	if changed {
		w.current = creds.AuthFileContent
	}
	w.mu.Unlock()

	if !changed {
		return
	}

	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	if w.closed {
		return
	}
	if w.logger != nil {
		w.logger.Info("auth file changed, reloading credentials", "path", w.path)
	}
	w.onChange(creds)
}
