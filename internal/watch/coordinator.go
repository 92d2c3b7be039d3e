// Package watch coordinates directory-change notifications for file panels.
//
// A Coordinator watches a bounded set of paths on behalf of many owners and
// tells each owner when its directory may have changed. It never inspects
// or diffs directory contents; owners decide what to re-read.
//
// Three goroutines cooperate: the caller (control), the watcher, which is
// the only one blocking on notification handles and dispatching, and the
// reclaimer, which is the only one closing handles. Closing a handle on an
// unresponsive network mount can hang forever, so no caller ever waits on it
// for more than a short, bounded time.
package watch

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	// ErrWatchFailed is returned when no notification handle could be opened
	// for a path. Callers fall back to manual refresh.
	ErrWatchFailed = errors.New("watch: cannot watch path")

	// ErrUnknownEntry is returned for entries that are not registered.
	ErrUnknownEntry = errors.New("watch: unknown entry")
)

// Coordinator is the directory-change watch coordinator.
type Coordinator struct {
	opts    Options
	logger  *zap.Logger
	set     WatchSet
	guard   *ExclusiveGuard
	reclaim *Reclaimer
	counter TimeCounter

	// Owned by the watcher goroutine.
	throttle *throttle
	control  [numControlCases]reflect.SelectCase

	ctlMu    sync.Mutex // serializes control operations
	suspends int

	quit     chan struct{}
	suspend  chan bool
	external chan struct{}
	media    chan struct{}
	loopDone chan struct{}

	mediaMu      sync.Mutex
	mediaPending []mediaEvent
	shutdown atomic.Bool

	stats counters
}

// New starts a Coordinator.
func New(opts Options) *Coordinator {
	opts = opts.withDefaults()

	c := &Coordinator{
		opts:     opts,
		logger:   opts.Logger,
		guard:    NewExclusiveGuard(),
		reclaim:  NewReclaimer(opts.Logger),
		throttle: newThrottle(opts.QuietWindow),
		quit:     make(chan struct{}),
		suspend:  make(chan bool),
		external: make(chan struct{}, 1),
		media:    make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}

	recv := func(ch any) reflect.SelectCase {
		return reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)}
	}
	c.control[caseQuit] = recv(c.quit)
	c.control[caseExclusive] = recv(c.guard.Requests())
	c.control[caseSuspend] = recv(c.suspend)
	c.control[caseExternal] = recv(c.external)
	c.control[caseMedia] = recv(c.media)
	c.control[caseThrottle] = reflect.SelectCase{Dir: reflect.SelectRecv}

	c.logger.Debug("starting watcher",
		zap.Duration("quiet_window", opts.QuietWindow),
		zap.Duration("drain_wait", opts.DrainWait),
		zap.Duration("reclaim_timeout", opts.ReclaimTimeout),
	)

	go c.run()
	return c
}

// RegisterWatch starts watching path for owner. On failure the error wraps
// ErrWatchFailed and the owner should degrade to manual refresh.
func (c *Coordinator) RegisterWatch(path string, owner Owner, aux any) (*WatchEntry, error) {
	if owner == nil {
		return nil, fmt.Errorf("%w %s: nil owner", ErrWatchFailed, path)
	}

	h, err := c.opts.Factory.Open(path)
	if err != nil {
		c.logger.Warn("watch failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w %s: %w", ErrWatchFailed, path, err)
	}

	clean := filepath.Clean(path)
	e := &WatchEntry{
		Owner:  owner,
		Aux:    aux,
		handle: h,
		path:   clean,
		key:    aliasKey(clean, c.opts.NormalizeUnicode),
	}

	c.ctlMu.Lock()
	defer c.ctlMu.Unlock()
	if err := c.guard.Begin(); err != nil {
		c.reclaim.Enqueue(h)
		return nil, err
	}
	c.set.Add(e)
	c.guard.End()

	c.logger.Debug("watch registered", zap.String("path", clean))
	return e, nil
}

// ChangeWatch points e at newPath. The new handle is opened first, so on
// failure e keeps watching its old path.
func (c *Coordinator) ChangeWatch(e *WatchEntry, newPath string) error {
	h, err := c.opts.Factory.Open(newPath)
	if err != nil {
		c.logger.Warn("watch failed", zap.String("path", newPath), zap.Error(err))
		return fmt.Errorf("%w %s: %w", ErrWatchFailed, newPath, err)
	}

	clean := filepath.Clean(newPath)

	c.ctlMu.Lock()
	defer c.ctlMu.Unlock()
	if err := c.guard.Begin(); err != nil {
		c.reclaim.Enqueue(h)
		return err
	}
	old := c.set.Replace(e, h, clean, aliasKey(clean, c.opts.NormalizeUnicode))
	c.guard.End()

	if old == nil {
		c.reclaim.Enqueue(h)
		return ErrUnknownEntry
	}
	c.reclaim.Enqueue(old)
	c.logger.Debug("watch changed", zap.String("path", clean))
	return nil
}

// UnregisterWatch stops watching e. The handle is closed in the background;
// the call waits at most DrainWait for confirmation.
func (c *Coordinator) UnregisterWatch(e *WatchEntry) error {
	c.ctlMu.Lock()
	if err := c.guard.Begin(); err != nil {
		c.ctlMu.Unlock()
		return err
	}
	h, ok := c.set.Remove(e)
	c.guard.End()
	c.ctlMu.Unlock()

	if !ok {
		return ErrUnknownEntry
	}
	c.reclaim.Enqueue(h)
	if c.opts.DrainWait > 0 && !c.reclaim.WaitDrained(c.opts.DrainWait) {
		c.logger.Debug("close still pending", zap.String("path", h.Path()))
	}
	return nil
}

// BeginSuspend switches to buffering: touched owners are collected and
// notified once by the matching EndSuspend. Calls nest.
func (c *Coordinator) BeginSuspend() {
	c.ctlMu.Lock()
	defer c.ctlMu.Unlock()
	c.suspends++
	if c.suspends == 1 {
		c.signalSuspend(true)
	}
}

// EndSuspend ends the outermost suspension and flushes buffered owners.
// Unbalanced calls are logged and ignored.
func (c *Coordinator) EndSuspend() {
	c.ctlMu.Lock()
	defer c.ctlMu.Unlock()
	if c.suspends == 0 {
		c.logger.Warn("unbalanced EndSuspend")
		return
	}
	c.suspends--
	if c.suspends == 0 {
		c.signalSuspend(false)
	}
}

func (c *Coordinator) signalSuspend(on bool) {
	select {
	case c.suspend <- on:
	case <-c.guard.Done():
	}
}

// PostExternalEvent reports an event outside the watched handles, such as a
// network share change. It never blocks; events posted before the watcher
// handles the previous one coalesce.
func (c *Coordinator) PostExternalEvent() {
	select {
	case c.external <- struct{}{}:
	default:
	}
}

// PostMediaEvent notifies every owner watching root or a path below it. An
// empty root addresses all owners. Media events bypass suspension and the
// quiet window. It never blocks, so owners may post from their callbacks;
// every posted event is delivered in order.
func (c *Coordinator) PostMediaEvent(root string, kind MediaKind) {
	if c.shutdown.Load() {
		return
	}
	c.mediaMu.Lock()
	c.mediaPending = append(c.mediaPending, mediaEvent{root: root, kind: kind})
	c.mediaMu.Unlock()

	select {
	case c.media <- struct{}{}:
	default:
	}
}

// takeMedia returns and clears the queued media events.
func (c *Coordinator) takeMedia() []mediaEvent {
	c.mediaMu.Lock()
	defer c.mediaMu.Unlock()
	events := c.mediaPending
	c.mediaPending = nil
	return events
}

// Shutdown stops the watcher and the reclaimer. It waits for the watcher to
// exit and at most ReclaimTimeout for pending closes. Later calls return
// immediately.
func (c *Coordinator) Shutdown() {
	if !c.shutdown.CompareAndSwap(false, true) {
		return
	}
	close(c.quit)
	<-c.loopDone

	c.ctlMu.Lock()
	handles := c.set.Drain()
	c.ctlMu.Unlock()
	for _, h := range handles {
		c.reclaim.Enqueue(h)
	}

	if !c.reclaim.Stop(c.opts.ReclaimTimeout) {
		c.logger.Warn("shutdown left closes running in the background", zap.Int("pending", c.reclaim.Pending()))
	}
	c.logger.Debug("watcher stopped", zap.Uint64("stamp", c.counter.Current()))
	_ = c.logger.Sync()
}

// Len returns the number of live registrations.
func (c *Coordinator) Len() int {
	return c.set.Len()
}

// Stamp returns the last stamp handed to an owner.
func (c *Coordinator) Stamp() uint64 {
	return c.counter.Current()
}

// Stats returns a snapshot of watcher activity.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Watches:         c.set.Len(),
		Stamp:           c.counter.Current(),
		Dispatched:      c.stats.dispatched.Load(),
		Coalesced:       c.stats.coalesced.Load(),
		Synthesized:     c.stats.synthesized.Load(),
		MediaEvents:     c.stats.media.Load(),
		RearmFailures:   c.stats.rearmFailures.Load(),
		Reclaimed:       c.reclaim.reclaimed.Load(),
		ReclaimFailures: c.reclaim.failed.Load(),
		PendingReclaim:  c.reclaim.Pending(),
	}
}
