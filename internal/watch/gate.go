package watch

import (
	"errors"
	"sync"
)

// ErrTerminated is returned when the watcher goroutine has already exited.
var ErrTerminated = errors.New("watch: watcher terminated")

// ExclusiveGuard lets control goroutines mutate state that the watcher
// goroutine reads while it is parked in its multi-handle wait.
//
// The watcher cannot be preempted out of the wait, so it is woken with a
// request, acknowledges by parking, and waits for the release. End does not
// return until the watcher acknowledges it has resumed, so a caller never
// races ahead of the watcher's next wait. Control callers are serialized by
// mu.
type ExclusiveGuard struct {
	mu sync.Mutex

	want    chan struct{} // control -> watcher: wake up and park
	granted chan struct{} // watcher -> control: parked
	release chan struct{} // control -> watcher: section over
	resumed chan struct{} // watcher -> control: waiting again

	closeOnce sync.Once
	done      chan struct{}
}

// NewExclusiveGuard returns an open guard.
func NewExclusiveGuard() *ExclusiveGuard {
	return &ExclusiveGuard{
		want:    make(chan struct{}),
		granted: make(chan struct{}),
		release: make(chan struct{}),
		resumed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Begin blocks until the watcher is parked. It fails fast with
// ErrTerminated once the watcher has exited.
func (g *ExclusiveGuard) Begin() error {
	select {
	case <-g.done:
		return ErrTerminated
	default:
	}

	g.mu.Lock()
	select {
	case g.want <- struct{}{}:
	case <-g.done:
		g.mu.Unlock()
		return ErrTerminated
	}
	select {
	case <-g.granted:
		return nil
	case <-g.done:
		g.mu.Unlock()
		return ErrTerminated
	}
}

// End releases the watcher and waits for it to resume. It returns promptly
// even if the watcher terminated during the section. End must follow a
// successful Begin.
func (g *ExclusiveGuard) End() {
	defer g.mu.Unlock()
	select {
	case g.release <- struct{}{}:
	case <-g.done:
		return
	}
	select {
	case <-g.resumed:
	case <-g.done:
	}
}

// Requests is the channel the watcher includes in its wait.
func (g *ExclusiveGuard) Requests() <-chan struct{} {
	return g.want
}

// Park is called by the watcher after receiving from Requests. It grants the
// section, waits for the release and acknowledges resumption. It returns
// false if quit closed while parked.
func (g *ExclusiveGuard) Park(quit <-chan struct{}) bool {
	select {
	case g.granted <- struct{}{}:
	case <-quit:
		return false
	}
	select {
	case <-g.release:
	case <-quit:
		return false
	}
	select {
	case g.resumed <- struct{}{}:
		return true
	case <-quit:
		return false
	}
}

// Close marks the watcher as gone. Pending and future Begin calls fail and
// an open section's End returns.
func (g *ExclusiveGuard) Close() {
	g.closeOnce.Do(func() { close(g.done) })
}

// Done is closed once the watcher has exited.
func (g *ExclusiveGuard) Done() <-chan struct{} {
	return g.done
}
