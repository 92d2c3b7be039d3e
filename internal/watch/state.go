package watch

// loopState is the watcher's delivery mode: either delivering per-path
// notifications as they arrive, or buffering the set of touched owners while
// a bulk operation runs.
type loopState interface {
	isLoopState()
}

type delivering struct{}

// buffering collects owners touched while suspended. Order is the order in
// which owners were first touched.
type buffering struct {
	order    []*WatchEntry
	dirty    map[*WatchEntry]struct{}
	external bool
}

func (delivering) isLoopState() {}
func (*buffering) isLoopState() {}

func newBuffering() *buffering {
	return &buffering{dirty: make(map[*WatchEntry]struct{})}
}

// touch marks e dirty.
func (b *buffering) touch(e *WatchEntry) {
	if _, ok := b.dirty[e]; ok {
		return
	}
	b.dirty[e] = struct{}{}
	b.order = append(b.order, e)
}
