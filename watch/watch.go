package watch

import (
	internal "github.com/TFMV/panewatch/internal/watch"
	"go.uber.org/zap"
)

// Re-export the types and constants from the internal package
type (
	// Coordinator is the directory-change watch coordinator.
	Coordinator = internal.Coordinator

	// Options configures a Coordinator.
	Options = internal.Options

	// Owner receives notifications for a watched path.
	Owner = internal.Owner

	// WatchEntry binds an owner to a watched path.
	WatchEntry = internal.WatchEntry

	// Handle is one change-notification handle.
	Handle = internal.Handle

	// HandleFactory opens notification handles.
	HandleFactory = internal.HandleFactory

	// FSNotifyFactory opens handles backed by fsnotify.
	FSNotifyFactory = internal.FSNotifyFactory

	// MediaKind classifies device and media events.
	MediaKind = internal.MediaKind

	// LogLevel defines the verbosity of logging.
	LogLevel = internal.LogLevel

	// Stats is a snapshot of watcher activity.
	Stats = internal.Stats

	// Reclaimer runs calls that may hang behind a dedicated goroutine.
	Reclaimer = internal.Reclaimer

	// ExclusiveGuard coordinates exclusive access with a parked goroutine.
	ExclusiveGuard = internal.ExclusiveGuard
)

const (
	MediaArrived = internal.MediaArrived
	MediaRemoved = internal.MediaRemoved
	MediaChanged = internal.MediaChanged

	LogLevelError = internal.LogLevelError
	LogLevelWarn  = internal.LogLevelWarn
	LogLevelInfo  = internal.LogLevelInfo
	LogLevelDebug = internal.LogLevelDebug

	DefaultQuietWindow    = internal.DefaultQuietWindow
	DefaultDrainWait      = internal.DefaultDrainWait
	DefaultReclaimTimeout = internal.DefaultReclaimTimeout
)

var (
	ErrWatchFailed  = internal.ErrWatchFailed
	ErrUnknownEntry = internal.ErrUnknownEntry
	ErrTerminated   = internal.ErrTerminated
)

// New starts a Coordinator.
func New(opts Options) *Coordinator {
	return internal.New(opts)
}

// NewReclaimer starts a reclaim goroutine for calls that may hang.
func NewReclaimer(logger *zap.Logger) *Reclaimer {
	return internal.NewReclaimer(logger)
}

// NewExclusiveGuard returns an open guard.
func NewExclusiveGuard() *ExclusiveGuard {
	return internal.NewExclusiveGuard()
}

// NewLogger returns the logger a Coordinator builds for level.
func NewLogger(level LogLevel) *zap.Logger {
	return internal.NewLogger(level)
}
