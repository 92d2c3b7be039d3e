package watch

import (
	"reflect"
	"sync"
)

// Owner is the party interested in a watched path, typically a file panel.
// Callbacks run on the watcher goroutine and must return quickly; an owner
// that needs to do real work (re-listing a directory) hands it off. Apart
// from PostMediaEvent and PostExternalEvent, which never block, calling back
// into the Coordinator from a callback deadlocks.
type Owner interface {
	// OnDirectoryMaybeChanged reports that the watched directory may have
	// changed. Stamps for one owner strictly increase.
	OnDirectoryMaybeChanged(stamp uint64)

	// OnMediaEvent reports a device or media change affecting the watched
	// path. It is delivered even while notifications are suspended.
	OnMediaEvent(kind MediaKind)
}

// WatchEntry binds an owner to a notification handle. Entries are created by
// Coordinator.RegisterWatch and are owned by the WatchSet.
type WatchEntry struct {
	Owner Owner
	Aux   any // opaque token for the owner's use

	set    *WatchSet // guards the fields below once added
	handle Handle
	path   string
	key    string
}

// Path returns the path currently watched for the entry. It is safe to call
// while another goroutine changes the watch.
func (e *WatchEntry) Path() string {
	if e.set == nil {
		return e.path
	}
	e.set.mu.RLock()
	defer e.set.mu.RUnlock()
	return e.path
}

// WatchSet is the ordered collection of live entries. Index i of the entry
// slice always matches index i of the signal slice consumed by the
// multi-handle wait; both change together under mu.
type WatchSet struct {
	mu      sync.RWMutex
	entries []*WatchEntry
	signals []reflect.SelectCase
}

func signalCase(h Handle) reflect.SelectCase {
	return reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(h.Signal())}
}

// Len returns the number of entries.
func (s *WatchSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// At returns the entry at index i, or nil when out of range.
func (s *WatchSet) At(i int) *WatchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.entries) {
		return nil
	}
	return s.entries[i]
}

// Index returns the position of e, or -1.
func (s *WatchSet) Index(e *WatchEntry) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(e)
}

func (s *WatchSet) indexLocked(e *WatchEntry) int {
	for i, cur := range s.entries {
		if cur == e {
			return i
		}
	}
	return -1
}

// Add appends e.
func (s *WatchSet) Add(e *WatchEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.set = s
	s.entries = append(s.entries, e)
	s.signals = append(s.signals, signalCase(e.handle))
}

// Replace swaps the handle and path of e in place and returns the previous
// handle. It returns nil when e is not in the set.
func (s *WatchSet) Replace(e *WatchEntry, h Handle, path, key string) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(e)
	if i < 0 {
		return nil
	}
	old := e.handle
	e.handle, e.path, e.key = h, path, key
	s.signals[i] = signalCase(h)
	return old
}

// Remove deletes e, keeping the order of the remaining entries, and returns
// its handle.
func (s *WatchSet) Remove(e *WatchEntry) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(e)
	if i < 0 {
		return nil, false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.signals = append(s.signals[:i], s.signals[i+1:]...)
	return e.handle, true
}

// Drain removes every entry and returns their handles.
func (s *WatchSet) Drain() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]Handle, 0, len(s.entries))
	for _, e := range s.entries {
		handles = append(handles, e.handle)
	}
	s.entries = nil
	s.signals = nil
	return handles
}

// Siblings returns the other entries watching the same alias key as e.
func (s *WatchSet) Siblings(e *WatchEntry) []*WatchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*WatchEntry
	for _, cur := range s.entries {
		if cur != e && cur.key == e.key {
			out = append(out, cur)
		}
	}
	return out
}

// Under returns the entries whose path is root or lies below it. An empty
// root matches every entry.
func (s *WatchSet) Under(root string) []*WatchEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*WatchEntry
	for _, cur := range s.entries {
		if root == "" || isUnder(cur.path, root) {
			out = append(out, cur)
		}
	}
	return out
}

// appendSignals appends a copy of the signal cases to dst.
func (s *WatchSet) appendSignals(dst []reflect.SelectCase) []reflect.SelectCase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(dst, s.signals...)
}
