package watch

import "sync/atomic"

// Stats is a snapshot of watcher activity.
type Stats struct {
	Watches         int    `json:"watches"`          // Live registrations
	Stamp           uint64 `json:"stamp"`            // Last stamp handed out
	Dispatched      int64  `json:"dispatched"`       // Change notifications delivered
	Coalesced       int64  `json:"coalesced"`        // Of those, flushed on resume
	Synthesized     int64  `json:"synthesized"`      // Of those, sent to alias siblings
	MediaEvents     int64  `json:"media_events"`     // Media notifications delivered
	RearmFailures   int64  `json:"rearm_failures"`   // Handles that could not be re-armed
	Reclaimed       int64  `json:"reclaimed"`        // Handles closed by the reclaimer
	ReclaimFailures int64  `json:"reclaim_failures"` // Close calls that returned an error
	PendingReclaim  int    `json:"pending_reclaim"`  // Closes still queued or running
}

type counters struct {
	dispatched    atomic.Int64
	coalesced     atomic.Int64
	synthesized   atomic.Int64
	media         atomic.Int64
	rearmFailures atomic.Int64
}
