package watch

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errRefused = errors.New("refused")

// fakeHandle is a notification handle driven by the test.
type fakeHandle struct {
	path   string
	signal chan struct{}
	block  <-chan struct{} // Close waits on it when non-nil
	closed atomic.Bool
	rearms atomic.Int32
	broken atomic.Bool // Rearm fails while set
}

func (h *fakeHandle) Path() string            { return h.path }
func (h *fakeHandle) Signal() <-chan struct{} { return h.signal }

func (h *fakeHandle) Rearm() error {
	h.rearms.Add(1)
	if h.broken.Load() {
		return errRefused
	}
	return nil
}

func (h *fakeHandle) Close() error {
	if h.block != nil {
		<-h.block
	}
	h.closed.Store(true)
	return nil
}

// Fire simulates the OS signaling the handle.
func (h *fakeHandle) Fire() {
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

// fakeFactory hands out fakeHandles and remembers them by path.
type fakeFactory struct {
	mu      sync.Mutex
	handles map[string][]*fakeHandle
	refuse  map[string]bool
	block   map[string]chan struct{}
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		handles: make(map[string][]*fakeHandle),
		refuse:  make(map[string]bool),
		block:   make(map[string]chan struct{}),
	}
}

func (f *fakeFactory) Open(path string) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuse[path] {
		return nil, errRefused
	}
	h := &fakeHandle{path: filepath.Clean(path), signal: make(chan struct{}, 1)}
	if ch, ok := f.block[path]; ok {
		h.block = ch
	}
	f.handles[path] = append(f.handles[path], h)
	return h, nil
}

// last returns the most recent handle opened for path.
func (f *fakeFactory) last(t *testing.T, path string) *fakeHandle {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	hs := f.handles[path]
	if len(hs) == 0 {
		t.Fatalf("no handle opened for %s", path)
	}
	return hs[len(hs)-1]
}

// recOwner records everything delivered to it.
type recOwner struct {
	name   string
	stamps chan uint64
	media  chan MediaKind
}

func newRecOwner(name string) *recOwner {
	return &recOwner{
		name:   name,
		stamps: make(chan uint64, 256),
		media:  make(chan MediaKind, 256),
	}
}

func (o *recOwner) OnDirectoryMaybeChanged(stamp uint64) { o.stamps <- stamp }
func (o *recOwner) OnMediaEvent(kind MediaKind)          { o.media <- kind }

// next waits for one dispatch.
func (o *recOwner) next(t *testing.T, timeout time.Duration) uint64 {
	t.Helper()
	select {
	case s := <-o.stamps:
		return s
	case <-time.After(timeout):
		t.Fatalf("%s: no notification within %v", o.name, timeout)
		return 0
	}
}

// count drains notifications arriving within d.
func (o *recOwner) count(d time.Duration) int {
	n := 0
	deadline := time.After(d)
	for {
		select {
		case <-o.stamps:
			n++
		case <-deadline:
			return n
		}
	}
}

func newTestCoordinator(t *testing.T, f *fakeFactory, opts Options) *Coordinator {
	t.Helper()
	opts.Factory = f
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReclaimTimeout == 0 {
		opts.ReclaimTimeout = 200 * time.Millisecond
	}
	c := New(opts)
	t.Cleanup(c.Shutdown)
	return c
}

// waitConsumed waits until the watcher has received h's pending signal.
func waitConsumed(t *testing.T, h *fakeHandle) {
	t.Helper()
	waitFor(t, time.Second, func() bool { return len(h.signal) == 0 })
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
