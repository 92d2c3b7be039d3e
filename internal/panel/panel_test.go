package panel

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/TFMV/panewatch/internal/watch"
)

// collector gathers rendered listings.
type collector struct {
	ch chan Listing
}

func newCollector() *collector {
	return &collector{ch: make(chan Listing, 32)}
}

func (c *collector) render(l Listing) { c.ch <- l }

func (c *collector) next(t *testing.T) Listing {
	t.Helper()
	select {
	case l := <-c.ch:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("no listing rendered")
		return Listing{}
	}
}

func (c *collector) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case l := <-c.ch:
		t.Fatalf("unexpected listing with stamp %d", l.Stamp)
	case <-time.After(d):
	}
}

func startPanel(t *testing.T, p *Panel) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func TestListSortsDirectoriesFirst(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"zdir", "adir"} {
		if err := os.Mkdir(filepath.Join(tmpDir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := List(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{{"adir", true}, {"zdir", true}, {"a.txt", false}, {"b.txt", false}}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}

	if _, err := List(filepath.Join(tmpDir, "missing")); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func TestPanelDropsStaleStamps(t *testing.T) {
	tmpDir := t.TempDir()
	c := newCollector()
	p := New(tmpDir, c.render, nil, nil)
	startPanel(t, p)

	p.OnDirectoryMaybeChanged(5)
	if l := c.next(t); l.Stamp != 5 || l.Path != tmpDir {
		t.Fatalf("listing = %+v, want stamp 5", l)
	}

	p.OnDirectoryMaybeChanged(3)
	p.OnDirectoryMaybeChanged(5)
	c.none(t, 100*time.Millisecond)
	if got := p.Stale(); got != 2 {
		t.Fatalf("Stale = %d, want 2", got)
	}

	p.OnDirectoryMaybeChanged(6)
	if l := c.next(t); l.Stamp != 6 {
		t.Fatalf("stamp = %d, want 6", l.Stamp)
	}
}

func TestPanelManualRefreshAndSetPath(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(right, "r.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	c := newCollector()
	p := New(left, c.render, nil, nil)
	startPanel(t, p)

	p.Refresh()
	if l := c.next(t); l.Stamp != 0 || len(l.Entries) != 0 {
		t.Fatalf("manual listing = %+v", l)
	}

	p.SetPath(right, 10)
	l := c.next(t)
	if l.Path != right || len(l.Entries) != 1 || l.Entries[0].Name != "r.txt" {
		t.Fatalf("listing after SetPath = %+v", l)
	}

	// Stamped before the switch.
	p.OnDirectoryMaybeChanged(9)
	c.none(t, 100*time.Millisecond)
}

func TestPanelMediaEvents(t *testing.T) {
	tmpDir := t.TempDir()
	c := newCollector()
	kinds := make(chan watch.MediaKind, 4)
	p := New(tmpDir, c.render, func(path string, kind watch.MediaKind) {
		if path != tmpDir {
			t.Errorf("media path = %q", path)
		}
		kinds <- kind
	}, nil)
	startPanel(t, p)

	p.OnMediaEvent(watch.MediaRemoved)
	if k := <-kinds; k != watch.MediaRemoved {
		t.Fatalf("kind = %v", k)
	}
	c.none(t, 50*time.Millisecond)

	p.OnMediaEvent(watch.MediaArrived)
	<-kinds
	c.next(t)
}

func TestPanelWithCoordinator(t *testing.T) {
	tmpDir := t.TempDir()
	coord := watch.New(watch.Options{QuietWindow: 50 * time.Millisecond, LogLevel: watch.LogLevelError})
	defer coord.Shutdown()

	c := newCollector()
	p := New(tmpDir, c.render, nil, nil)
	startPanel(t, p)

	if _, err := coord.RegisterWatch(tmpDir, p, nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(tmpDir, "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case l := <-c.ch:
			for _, e := range l.Entries {
				if e.Name == "new.txt" {
					return
				}
			}
		case <-deadline:
			t.Fatal("new file never showed up in a listing")
		}
	}
}

func TestSubdirectories(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a/b", ".hidden/c", "d"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}

	dirs, err := Subdirectories(root, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 4 { // root, a, a/b, d
		t.Fatalf("got %v", dirs)
	}

	dirs, err = Subdirectories(root, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 6 {
		t.Fatalf("with hidden got %v", dirs)
	}
}

func TestPanelListOnce(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	c := newCollector()
	New(dir, c.render, nil, nil).ListOnce()
	if len(c.ch) != 1 {
		t.Fatalf("ListOnce rendered %d listings, want 1", len(c.ch))
	}
	if l := <-c.ch; l.Stamp != 0 || len(l.Entries) != 1 || l.Err != nil {
		t.Fatalf("listing = %+v", l)
	}

	missing := filepath.Join(dir, "missing")
	New(missing, c.render, nil, nil).ListOnce()
	if l := c.next(t); l.Path != missing || l.Err == nil {
		t.Fatalf("listing of missing dir = %+v", l)
	}
}
