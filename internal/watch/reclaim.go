package watch

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// reclaimJob is one unbounded-latency call queued on the Reclaimer.
type reclaimJob struct {
	name string
	fn   func() error
}

// Reclaimer runs calls that may hang forever, most importantly Handle.Close
// on a dead network mount, on a dedicated goroutine behind a FIFO queue.
// Callers never block on it; they may optionally wait a bounded time for the
// queue to drain.
type Reclaimer struct {
	logger *zap.Logger

	mu      sync.Mutex
	queue   []reclaimJob
	idle    chan struct{} // closed while the queue is empty and nothing runs
	isIdle  bool
	running bool
	stopped bool

	wake   chan struct{}
	quit   chan struct{}
	exited chan struct{}

	reclaimed atomic.Int64
	failed    atomic.Int64
}

// NewReclaimer starts the reclaim goroutine.
func NewReclaimer(logger *zap.Logger) *Reclaimer {
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := make(chan struct{})
	close(idle)
	r := &Reclaimer{
		logger: logger,
		idle:   idle,
		isIdle: true,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go r.run()
	return r
}

// Enqueue schedules c.Close and returns immediately.
func (r *Reclaimer) Enqueue(c io.Closer) {
	name := ""
	if h, ok := c.(interface{ Path() string }); ok {
		name = h.Path()
	}
	r.Submit(name, c.Close)
}

// Submit schedules fn and returns immediately. After Stop, fn runs on a
// detached goroutine instead.
func (r *Reclaimer) Submit(name string, fn func() error) {
	job := reclaimJob{name: name, fn: fn}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		go r.exec(job)
		return
	}
	r.queue = append(r.queue, job)
	if r.isIdle {
		r.idle = make(chan struct{})
		r.isIdle = false
	}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// WaitDrained waits up to timeout for every queued call to finish. A false
// result only means the calls will complete later in the background.
func (r *Reclaimer) WaitDrained(timeout time.Duration) bool {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()

	if timeout <= 0 {
		select {
		case <-idle:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-idle:
		return true
	case <-timer.C:
		return false
	}
}

// Pending reports the number of queued calls, including one in flight.
func (r *Reclaimer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.queue)
	if r.running {
		n++
	}
	return n
}

// Stop asks the worker to finish the queue and exit, waiting at most
// timeout. When the worker is stuck in a hung call it is abandoned: it keeps
// running in the background and Stop returns false.
func (r *Reclaimer) Stop(timeout time.Duration) bool {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return true
	}
	r.stopped = true
	r.mu.Unlock()
	close(r.quit)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.exited:
		r.logger.Debug("reclaim worker stopped", zap.Int64("reclaimed", r.reclaimed.Load()))
		return true
	case <-timer.C:
		r.logger.Warn("abandoning reclaim worker", zap.Duration("timeout", timeout), zap.Int("pending", r.Pending()))
		return false
	}
}

func (r *Reclaimer) run() {
	defer close(r.exited)
	for {
		job, ok := r.pop()
		if ok {
			r.exec(job)
			continue
		}
		select {
		case <-r.wake:
		case <-r.quit:
			for {
				job, ok := r.pop()
				if !ok {
					return
				}
				r.exec(job)
			}
		}
	}
}

func (r *Reclaimer) pop() (reclaimJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		r.running = false
		if !r.isIdle {
			close(r.idle)
			r.isIdle = true
		}
		return reclaimJob{}, false
	}
	job := r.queue[0]
	r.queue[0] = reclaimJob{}
	r.queue = r.queue[1:]
	r.running = true
	return job, true
}

func (r *Reclaimer) exec(job reclaimJob) {
	if err := job.fn(); err != nil {
		r.failed.Add(1)
		r.logger.Warn("reclaim failed", zap.String("path", job.name), zap.Error(err))
		return
	}
	r.reclaimed.Add(1)
	r.logger.Debug("reclaimed", zap.String("path", job.name))
}
