package watch

import (
	"reflect"
	"time"
)

// throttle is the quiet window that follows every dispatch. While it is
// active the watcher waits only on control signals and the window timer;
// handle signals stay pending (they are level-triggered) and are picked up
// by the first wait after the window closes.
type throttle struct {
	quiet    time.Duration
	timer    *time.Timer
	deadline time.Time
	active   bool
}

func newThrottle(quiet time.Duration) *throttle {
	return &throttle{quiet: quiet}
}

// start opens or extends the window from now.
func (t *throttle) start(now time.Time) {
	if t.quiet <= 0 {
		return
	}
	t.deadline = now.Add(t.quiet)
	t.active = true
}

// remaining returns deadline-now, or zero when inactive.
func (t *throttle) remaining(now time.Time) time.Duration {
	if !t.active {
		return 0
	}
	if d := t.deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// expire clears the window.
func (t *throttle) expire() {
	t.active = false
	t.deadline = time.Time{}
}

// stop releases the timer.
func (t *throttle) stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.expire()
}

// selectCase returns the case bounding the next wait to deadline-now. A
// window whose deadline has passed is cleared here, and an inactive window
// yields a zero case, which reflect.Select ignores.
func (t *throttle) selectCase(now time.Time) reflect.SelectCase {
	if !t.active {
		return reflect.SelectCase{Dir: reflect.SelectRecv}
	}
	d := t.remaining(now)
	if d == 0 {
		t.expire()
		return reflect.SelectCase{Dir: reflect.SelectRecv}
	}
	if t.timer == nil {
		t.timer = time.NewTimer(d)
	} else {
		t.timer.Reset(d)
	}
	return reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(t.timer.C)}
}
