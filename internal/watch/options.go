package watch

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultQuietWindow    = 500 * time.Millisecond
	DefaultDrainWait      = 100 * time.Millisecond
	DefaultReclaimTimeout = 2 * time.Second
)

// LogLevel defines the verbosity of logging.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// MediaKind classifies device and media events.
type MediaKind int

const (
	MediaArrived MediaKind = iota // volume mounted or media inserted
	MediaRemoved                  // volume unmounted or media ejected
	MediaChanged                  // media swapped in place
)

func (k MediaKind) String() string {
	switch k {
	case MediaArrived:
		return "arrived"
	case MediaRemoved:
		return "removed"
	case MediaChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Options configures a Coordinator.
type Options struct {
	// Factory opens notification handles. Defaults to FSNotifyFactory.
	Factory HandleFactory

	// QuietWindow bounds how often notifications are dispatched during
	// bursts. Zero selects DefaultQuietWindow, negative disables throttling.
	QuietWindow time.Duration

	// DrainWait is how long UnregisterWatch waits for the handle to be
	// closed before returning anyway. Zero selects DefaultDrainWait,
	// negative skips the wait.
	DrainWait time.Duration

	// ReclaimTimeout bounds how long Shutdown waits for pending closes
	// before abandoning the reclaim goroutine.
	ReclaimTimeout time.Duration

	// NormalizeUnicode makes alias detection compare NFC-normalized paths.
	NormalizeUnicode bool

	// OnExternalEvent is called on the watcher goroutine for events posted
	// with PostExternalEvent, such as network share changes.
	OnExternalEvent func()

	Logger   *zap.Logger
	LogLevel LogLevel
}

func (o Options) withDefaults() Options {
	switch {
	case o.QuietWindow == 0:
		o.QuietWindow = DefaultQuietWindow
	case o.QuietWindow < 0:
		o.QuietWindow = 0
	}
	switch {
	case o.DrainWait == 0:
		o.DrainWait = DefaultDrainWait
	case o.DrainWait < 0:
		o.DrainWait = 0
	}
	if o.ReclaimTimeout <= 0 {
		o.ReclaimTimeout = DefaultReclaimTimeout
	}
	if o.Logger == nil {
		o.Logger = createLogger(o.LogLevel)
	}
	if o.Factory == nil {
		o.Factory = FSNotifyFactory{Logger: o.Logger}
	}
	return o
}

// createLogger creates a zap logger with the specified log level.
func createLogger(level LogLevel) *zap.Logger {
	var config zap.Config

	switch level {
	case LogLevelError:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	case LogLevelWarn:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case LogLevelDebug:
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewLogger returns the logger New would build for level.
func NewLogger(level LogLevel) *zap.Logger {
	return createLogger(level)
}
