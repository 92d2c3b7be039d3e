package watch

import (
	"reflect"
	"time"

	"go.uber.org/zap"
)

// Fixed positions in the watcher's select cases. Handle signals follow at
// numControlCases+i for WatchSet index i.
const (
	caseQuit = iota
	caseExclusive
	caseSuspend
	caseExternal
	caseMedia
	caseThrottle
	numControlCases
)

type mediaEvent struct {
	root string
	kind MediaKind
}

// run is the watcher goroutine. It is the only caller of the multi-handle
// wait and the only goroutine that dispatches to owners.
func (c *Coordinator) run() {
	defer close(c.loopDone)
	defer c.guard.Close()
	defer c.throttle.stop()

	var state loopState = delivering{}
	cases := c.buildCases(nil)

	for {
		cases[caseThrottle] = c.throttle.selectCase(time.Now())
		active := cases
		if c.throttle.active {
			active = cases[:numControlCases]
		}

		chosen, recv, recvOK := reflect.Select(active)
		switch {
		case chosen == caseQuit:
			c.logger.Debug("watcher terminating")
			return

		case chosen == caseExclusive:
			if !c.guard.Park(c.quit) {
				c.logger.Debug("watcher terminated while parked")
				return
			}
			cases = c.buildCases(cases[:0])

		case chosen == caseSuspend:
			state = c.transition(state, recv.Bool())

		case chosen == caseExternal:
			if b, ok := state.(*buffering); ok {
				b.external = true
				continue
			}
			c.fireExternal()

		case chosen == caseMedia:
			for _, ev := range c.takeMedia() {
				c.dispatchMedia(ev)
			}

		case chosen == caseThrottle:
			c.throttle.expire()

		case chosen >= numControlCases && chosen < len(active):
			if !recvOK {
				c.logger.Warn("notification handle closed its signal", zap.Int("index", chosen-numControlCases))
				cases[chosen] = reflect.SelectCase{Dir: reflect.SelectRecv}
				continue
			}
			c.handleSignal(state, chosen-numControlCases)

		default:
			c.logger.Warn("unexpected wait index", zap.Int("index", chosen))
		}
	}
}

func (c *Coordinator) buildCases(dst []reflect.SelectCase) []reflect.SelectCase {
	dst = append(dst, c.control[:]...)
	return c.set.appendSignals(dst)
}

// transition switches between delivering and buffering.
func (c *Coordinator) transition(state loopState, suspend bool) loopState {
	switch s := state.(type) {
	case delivering:
		if suspend {
			c.logger.Debug("notifications suspended")
			return newBuffering()
		}
	case *buffering:
		if !suspend {
			c.flush(s)
			c.logger.Debug("notifications resumed", zap.Int("dirty", len(s.order)))
			return delivering{}
		}
	}
	return state
}

// handleSignal services a fired handle at WatchSet index i.
func (c *Coordinator) handleSignal(state loopState, i int) {
	e := c.set.At(i)
	if e == nil {
		c.logger.Warn("unexpected wait index", zap.Int("index", i))
		return
	}

	// Re-arming one handle can invalidate another handle on the same path,
	// so siblings get the dispatch now instead of waiting for a signal that
	// may never come.
	siblings := c.set.Siblings(e)

	switch s := state.(type) {
	case *buffering:
		s.touch(e)
		for _, sib := range siblings {
			s.touch(sib)
			drainSignal(sib.handle)
		}
	default:
		c.dispatch(e)
		for _, sib := range siblings {
			c.dispatch(sib)
			c.stats.synthesized.Add(1)
			drainSignal(sib.handle)
		}
	}

	c.rearm(e)
	for _, sib := range siblings {
		c.rearm(sib)
	}

	if _, ok := state.(delivering); ok {
		c.throttle.start(time.Now())
	}
}

// flush delivers one notification per owner touched while suspended.
func (c *Coordinator) flush(b *buffering) {
	for _, e := range b.order {
		if c.set.Index(e) < 0 {
			continue
		}
		c.dispatch(e)
		c.stats.coalesced.Add(1)
	}
	if b.external {
		c.fireExternal()
	}
	c.throttle.start(time.Now())
}

func (c *Coordinator) dispatch(e *WatchEntry) {
	stamp := c.counter.Next()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("owner panicked", zap.String("path", e.path), zap.Any("panic", r))
		}
	}()
	c.logger.Debug("dispatch", zap.String("path", e.path), zap.Uint64("stamp", stamp))
	c.stats.dispatched.Add(1)
	e.Owner.OnDirectoryMaybeChanged(stamp)
}

func (c *Coordinator) dispatchMedia(ev mediaEvent) {
	for _, e := range c.set.Under(ev.root) {
		c.logger.Debug("media event", zap.String("path", e.path), zap.Stringer("kind", ev.kind))
		c.stats.media.Add(1)
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("owner panicked", zap.String("path", e.path), zap.Any("panic", r))
				}
			}()
			e.Owner.OnMediaEvent(ev.kind)
		}()
	}
}

func (c *Coordinator) fireExternal() {
	if c.opts.OnExternalEvent == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("external event handler panicked", zap.Any("panic", r))
		}
	}()
	c.opts.OnExternalEvent()
}

func (c *Coordinator) rearm(e *WatchEntry) {
	if err := e.handle.Rearm(); err != nil {
		c.stats.rearmFailures.Add(1)
		c.logger.Debug("rearm failed", zap.String("path", e.path), zap.Error(err))
	}
}

func drainSignal(h Handle) {
	select {
	case <-h.Signal():
	default:
	}
}
