package watch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handle is one change-notification handle bound to a single path.
//
// Signal is level-triggered: any number of OS events between two receives
// collapse into one pending signal, and nothing is lost while nobody is
// receiving. Close may block for an arbitrarily long time (unresponsive
// network mounts), which is why only the Reclaimer calls it.
type Handle interface {
	Path() string
	Signal() <-chan struct{}
	Rearm() error
	Close() error
}

// HandleFactory opens notification handles.
type HandleFactory interface {
	Open(path string) (Handle, error)
}

// FSNotifyFactory opens handles backed by one fsnotify watcher per path.
type FSNotifyFactory struct {
	Logger *zap.Logger
}

// Open starts watching path.
func (f FSNotifyFactory) Open(path string) (Handle, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}

	path = filepath.Clean(path)
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("error watching directory %s: %w", path, err)
	}

	h := &fsHandle{
		path:   path,
		w:      w,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("path", path)),
	}
	go h.pump()
	return h, nil
}

type fsHandle struct {
	path   string
	w      *fsnotify.Watcher
	signal chan struct{}
	done   chan struct{}
	logger *zap.Logger

	mu      sync.Mutex
	dropped bool // the OS removed the watch along with the directory
}

func (h *fsHandle) Path() string            { return h.path }
func (h *fsHandle) Signal() <-chan struct{} { return h.signal }

func (h *fsHandle) fire() {
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

func (h *fsHandle) pump() {
	defer close(h.done)
	for {
		select {
		case event, ok := <-h.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == h.path && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				h.mu.Lock()
				h.dropped = true
				h.mu.Unlock()
			}
			h.fire()

		case err, ok := <-h.w.Errors:
			if !ok {
				return
			}
			// Queue overflow and friends: events were lost, so a refresh is due.
			h.logger.Debug("watcher error", zap.Error(err))
			h.fire()
		}
	}
}

// Rearm re-adds the path if the OS dropped the watch.
func (h *fsHandle) Rearm() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dropped {
		return nil
	}
	if err := h.w.Add(h.path); err != nil {
		return fmt.Errorf("error re-watching directory %s: %w", h.path, err)
	}
	h.dropped = false
	return nil
}

func (h *fsHandle) Close() error {
	err := h.w.Close()
	<-h.done
	return err
}
