package watch

import "sync"

// TimeCounter is a monotonic sequence stamped on every dispatch so that
// owners can discard stale or duplicate refresh work.
type TimeCounter struct {
	mu sync.Mutex
	n  uint64
}

// Next increments the counter and returns the new value.
func (c *TimeCounter) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Current returns the last value handed out by Next.
func (c *TimeCounter) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
