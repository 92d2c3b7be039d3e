package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TFMV/panewatch/internal/panel"
	"github.com/TFMV/panewatch/internal/watch"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, left, right string) (*session, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	out := &printer{out: &buf, format: "text"}
	s := &session{
		coord:  watch.New(watch.Options{QuietWindow: -1, Logger: zap.NewNop()}),
		logger: zap.NewNop(),
		out:    out,
		panes:  make(map[string]*pane),
	}
	t.Cleanup(s.coord.Shutdown)
	for label, dir := range map[string]string{"left": left, "right": right} {
		p := &pane{label: label, panel: panel.New(dir, out.listing(label), out.media, nil)}
		s.panes[label] = p
		s.watch(p, dir)
	}
	return s, &buf
}

func TestSessionCommands(t *testing.T) {
	left, right, other := t.TempDir(), t.TempDir(), t.TempDir()
	s, _ := newTestSession(t, left, right)

	if s.coord.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.coord.Len())
	}

	tests := []struct {
		line    string
		wantErr bool
	}{
		{"", false},
		{"suspend", false},
		{"resume", false},
		{"refresh", false},
		{"share", false},
		{"eject " + left, false},
		{"mount " + left, false},
		{"stats", false},
		{"cd left " + other, false},
		{"cd middle " + other, true},
		{"cd left", true},
		{"cd left " + filepath.Join(other, "missing"), true},
		{"eject", true},
		{"dance", true},
	}
	for _, tt := range tests {
		err := s.exec(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("exec(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
		}
	}

	if got := s.panes["left"].panel.Path(); got != other {
		t.Fatalf("left pane path = %q, want %q", got, other)
	}
	if got := s.panes["left"].entry.Path(); got != filepath.Clean(other) {
		t.Fatalf("left watch path = %q, want %q", got, other)
	}
	if err := s.exec("quit"); !errors.Is(err, errQuit) {
		t.Fatalf("quit returned %v", err)
	}
}

func TestSessionCdOnFile(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	s, _ := newTestSession(t, left, right)

	file := filepath.Join(left, "plain.txt")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.exec("cd right " + file); err == nil {
		t.Fatal("cd into a file succeeded")
	}
}

func TestPrinterFormats(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{out: &buf, format: "text"}
	p.listing("left")(panel.Listing{Path: "/a", Stamp: 3, Entries: make([]panel.Entry, 2)})
	p.listing("")(panel.Listing{Path: "/b"})
	p.listing("")(panel.Listing{Path: "/c", Err: errors.New("gone")})
	p.media("/media/usb", watch.MediaRemoved)

	for _, want := range []string{
		"[left] CHANGED: /a (2 entries, stamp 3)",
		"REFRESH: /b (0 entries)",
		"ERROR: /c: gone",
		"MEDIA removed: /media/usb",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	p = &printer{out: &buf, format: "json"}
	p.listing("right")(panel.Listing{Path: "/a", Stamp: 7})
	p.stats(watch.Stats{Dispatched: 4})
	if !strings.Contains(buf.String(), `"stamp":7`) || !strings.Contains(buf.String(), `"dispatched":4`) {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}

	buf.Reset()
	p = &printer{out: &buf, format: "text", silent: true}
	p.listing("")(panel.Listing{Path: "/quiet"})
	p.stats(watch.Stats{})
	if buf.Len() != 0 {
		t.Fatalf("silent printer wrote %q", buf.String())
	}
}
