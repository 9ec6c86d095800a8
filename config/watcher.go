package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 100 * time.Millisecond

// WatcherOptions configure a Watcher.
type WatcherOptions struct {
	// Files are watched for changes. Their directories are watched so that
	// editors replacing the file atomically are noticed.
	Files []string

	// Interval polls modification times. Zero disables polling.
	Interval time.Duration

	// Debounce delays the callback after the last event. Zero means DefaultDebounce.
	Debounce time.Duration

	// OnChange is called from the watcher goroutine, never concurrently.
	OnChange func()

	Logger *zap.Logger
}

// Watcher reports configuration changes seen by fsnotify or by polling.
type Watcher struct {
	opts    WatcherOptions
	logger  *zap.Logger
	watched map[string]struct{}
	mtimes  map[string]time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewWatcher creates a stopped watcher.
func NewWatcher(opts WatcherOptions) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		opts:    opts,
		logger:  logger.Named("watcher"),
		watched: make(map[string]struct{}, len(opts.Files)),
		mtimes:  make(map[string]time.Time, len(opts.Files)),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, f := range opts.Files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		w.watched[filepath.Clean(f)] = struct{}{}
		w.mtimes[filepath.Clean(f)] = modTime(f)
	}
	return w
}

// Start begins watching. fsnotify failures degrade to polling only. Start
// after Stop, or a second Start, does nothing.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return nil
	}
	w.started = true

	var startErr error
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("fsnotify unavailable, polling only", zap.Error(err))
		fsw = nil
		startErr = err
	} else {
		dirs := make(map[string]struct{})
		for f := range w.watched {
			dirs[filepath.Dir(f)] = struct{}{}
		}
		for dir := range dirs {
			if err := fsw.Add(dir); err != nil {
				w.logger.Warn("watch directory failed", zap.String("dir", dir), zap.Error(err))
			}
		}
	}
	go w.run(fsw)

	if startErr != nil && w.opts.Interval > 0 {
		return nil
	}
	return startErr
}

// Stop ends watching and waits for the watcher goroutine to exit.
// Stop on a watcher that was never started returns immediately.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.stop)
	}
	started := w.started
	w.mu.Unlock()

	if started {
		<-w.done
	}
}

func (w *Watcher) run(fsw *fsnotify.Watcher) {
	defer close(w.done)

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
		tick   <-chan time.Time
		fire   <-chan time.Time
	)
	if fsw != nil {
		defer fsw.Close()
		events, errs = fsw.Events, fsw.Errors
	}
	if w.opts.Interval > 0 {
		ticker := time.NewTicker(w.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if _, ours := w.watched[filepath.Clean(ev.Name)]; !ours {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.logger.Debug("config file event", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
				fire = time.After(w.opts.Debounce)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("fsnotify error", zap.Error(err))
		case <-tick:
			if w.poll() {
				fire = time.After(w.opts.Debounce)
			}
		case <-fire:
			fire = nil
			w.poll()
			if w.opts.OnChange != nil {
				w.opts.OnChange()
			}
		}
	}
}

// poll refreshes recorded modification times and reports whether any changed.
func (w *Watcher) poll() bool {
	changed := false
	for f, prev := range w.mtimes {
		cur := modTime(f)
		if !cur.Equal(prev) {
			w.mtimes[f] = cur
			changed = true
		}
	}
	return changed
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
