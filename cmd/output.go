package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/TFMV/panewatch/internal/panel"
	"github.com/TFMV/panewatch/internal/watch"
)

// printer writes panel listings and media events to out. Panels render from
// their own goroutines, so writes are serialized.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	silent bool
}

type listingRecord struct {
	Label   string `json:"label,omitempty"`
	Path    string `json:"path"`
	Stamp   uint64 `json:"stamp"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

func (p *printer) listing(label string) panel.RenderFunc {
	return func(l panel.Listing) {
		if p.silent && l.Err == nil {
			return
		}
		rec := listingRecord{Label: label, Path: l.Path, Stamp: l.Stamp, Entries: len(l.Entries)}
		if l.Err != nil {
			rec.Error = l.Err.Error()
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.format == "json" {
			data, _ := json.Marshal(rec)
			fmt.Fprintln(p.out, string(data))
			return
		}
		prefix := ""
		if label != "" {
			prefix = "[" + label + "] "
		}
		switch {
		case rec.Error != "":
			fmt.Fprintf(p.out, "%sERROR: %s: %s\n", prefix, rec.Path, rec.Error)
		case rec.Stamp == 0:
			fmt.Fprintf(p.out, "%sREFRESH: %s (%d entries)\n", prefix, rec.Path, rec.Entries)
		default:
			fmt.Fprintf(p.out, "%sCHANGED: %s (%d entries, stamp %d)\n", prefix, rec.Path, rec.Entries, rec.Stamp)
		}
	}
}

func (p *printer) media(path string, kind watch.MediaKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format == "json" {
		data, _ := json.Marshal(map[string]string{"path": path, "media": kind.String()})
		fmt.Fprintln(p.out, string(data))
		return
	}
	fmt.Fprintf(p.out, "MEDIA %s: %s\n", kind, path)
}

func (p *printer) stats(s watch.Stats) {
	if p.silent {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format == "json" {
		data, _ := json.Marshal(s)
		fmt.Fprintln(p.out, string(data))
		return
	}
	fmt.Fprintf(p.out, "Dispatched: %d notifications (%d coalesced, %d aliased), %d media events, %d handles reclaimed\n",
		s.Dispatched, s.Coalesced, s.Synthesized, s.MediaEvents, s.Reclaimed)
}
