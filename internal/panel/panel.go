// Package panel implements a file panel that keeps a directory listing fresh
// using notifications from the watch coordinator.
package panel

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/TFMV/panewatch/internal/watch"
	"github.com/karrick/godirwalk"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Entry is one item of a listing.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// Listing is the result of one refresh.
type Listing struct {
	Path    string  `json:"path"`
	Stamp   uint64  `json:"stamp"` // 0 for manual refreshes
	Entries []Entry `json:"entries"`
	Err     error   `json:"-"`
}

// RenderFunc receives every listing the panel produces.
type RenderFunc func(Listing)

// MediaFunc receives media events for the panel's path.
type MediaFunc func(path string, kind watch.MediaKind)

// Panel is a watch.Owner. Notifications only record the newest stamp; the
// directory is re-read on the panel's own goroutine (Run), so the watcher is
// never held up by slow listings.
type Panel struct {
	render  RenderFunc
	onMedia MediaFunc
	logger  *zap.Logger

	mu      sync.Mutex
	path    string
	pending uint64 // newest stamp received
	shown   uint64 // stamp of the last listing rendered
	manual  bool
	stale   int64

	wake chan struct{}
}

// New returns a panel showing path.
func New(path string, render RenderFunc, onMedia MediaFunc, logger *zap.Logger) *Panel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Panel{
		path:    path,
		render:  render,
		onMedia: onMedia,
		logger:  logger.With(zap.String("panel", path)),
		wake:    make(chan struct{}, 1),
	}
}

// Path returns the directory the panel shows.
func (p *Panel) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

// SetPath points the panel at a new directory. Notifications stamped before
// the switch are dropped.
func (p *Panel) SetPath(path string, stamp uint64) {
	p.mu.Lock()
	p.path = path
	if stamp > p.shown {
		p.shown = stamp
	}
	p.manual = true
	p.mu.Unlock()
	p.poke()
}

// OnDirectoryMaybeChanged implements watch.Owner.
func (p *Panel) OnDirectoryMaybeChanged(stamp uint64) {
	p.mu.Lock()
	if stamp <= p.shown || stamp <= p.pending {
		p.stale++
		p.mu.Unlock()
		return
	}
	p.pending = stamp
	p.mu.Unlock()
	p.poke()
}

// OnMediaEvent implements watch.Owner.
func (p *Panel) OnMediaEvent(kind watch.MediaKind) {
	p.logger.Info("media event", zap.Stringer("kind", kind))
	if p.onMedia != nil {
		p.onMedia(p.Path(), kind)
	}
	if kind != watch.MediaRemoved {
		p.Refresh()
	}
}

// Refresh requests a listing regardless of notifications. Panels that could
// not be watched rely on it.
func (p *Panel) Refresh() {
	p.mu.Lock()
	p.manual = true
	p.mu.Unlock()
	p.poke()
}

// ListOnce renders one manual listing on the calling goroutine. It is the
// whole refresh cycle for a panel that is not running.
func (p *Panel) ListOnce() {
	p.mu.Lock()
	p.manual = true
	p.mu.Unlock()
	p.refresh()
}

// Stale returns how many notifications were discarded as out of date.
func (p *Panel) Stale() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stale
}

func (p *Panel) poke() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run re-lists the directory whenever a newer notification or a manual
// refresh arrives, until ctx is done.
func (p *Panel) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.wake:
			p.refresh()
		}
	}
}

func (p *Panel) refresh() {
	p.mu.Lock()
	stamp := p.pending
	manual := p.manual
	if stamp <= p.shown && !manual {
		p.mu.Unlock()
		return
	}
	if stamp > p.shown {
		p.shown = stamp
	} else {
		stamp = 0
	}
	p.manual = false
	path := p.path
	p.mu.Unlock()

	entries, err := List(path)
	if err != nil {
		p.logger.Warn("listing failed", zap.Error(err))
	}
	if p.render != nil {
		p.render(Listing{Path: path, Stamp: stamp, Entries: entries, Err: err})
	}
}

// List reads dir with directories first, then files, each sorted by name.
// Names are NFC-normalized for display.
func List(dir string) ([]Entry, error) {
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("error reading directory %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		entries = append(entries, Entry{
			Name:  norm.NFC.String(de.Name()),
			IsDir: de.IsDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Subdirectories returns root and every directory below it, skipping hidden
// ones unless includeHidden is set.
func Subdirectories(root string, includeHidden bool) ([]string, error) {
	root = filepath.Clean(root)
	var dirs []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			if !includeHidden && path != root && isHidden(de.Name()) {
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory tree: %w", err)
	}
	return dirs, nil
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}
