package fidsync

import (
	"log/slog"

	"github.com/hupe1980/fidsync/resource"
)

// DefaultResyncThreshold is the number of pending remap entries at which
// ShouldResync starts recommending a resync.
const DefaultResyncThreshold = 1_000_000

type options struct {
	logger          *Logger
	denseBlocks     bool
	backup          bool
	verify          bool
	useMmap         bool
	resyncThreshold int
	controller      *resource.Controller
	metrics         MetricsCollector
}

// Option configures Resyncer behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := fidsync.NewJSONLogger(slog.LevelInfo)
//	r := fidsync.New(fidsync.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithDenseBlocks disables the sparse-block optimization: the rewritten slot
// file materializes every block up to the highest row id, with no block
// bitmap. Readers that cannot handle sparse slot files need this.
func WithDenseBlocks(dense bool) Option {
	return func(o *options) {
		o.denseBlocks = dense
	}
}

// WithBackup writes a zstd-compressed copy of the slot file next to it
// before rewriting. The backup is kept on success.
func WithBackup(backup bool) Option {
	return func(o *options) {
		o.backup = backup
	}
}

// WithVerify compares row presence between the source and the rewritten slot
// file before swapping it in. A mismatch aborts the resync with
// ErrVerifyFailed and leaves the original file untouched.
func WithVerify(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// WithMmap memory-maps the slot file source and the sidecar indexes instead
// of going through pread/pwrite. Index patching rewrites pages in place, so
// mapping them avoids a read-modify-write round trip per page.
func WithMmap(useMmap bool) Option {
	return func(o *options) {
		o.useMmap = useMmap
	}
}

// WithResyncThreshold sets the pending-remap count at which ShouldResync
// recommends resyncing. Values below 1 fall back to DefaultResyncThreshold.
func WithResyncThreshold(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = DefaultResyncThreshold
		}
		o.resyncThreshold = n
	}
}

// WithResourceController bounds concurrent resyncs and throttles rewrite
// I/O. Pass nil to run unconstrained.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &fidsync.BasicMetricsCollector{}
//	r := fidsync.New(fidsync.WithMetricsCollector(metrics))
//	// ... resync ...
//	stats := metrics.GetStats()
//	fmt.Printf("Resyncs: %d, Avg latency: %dns\n", stats.ResyncCount, stats.ResyncAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:          NoopLogger(),
		resyncThreshold: DefaultResyncThreshold,
		metrics:         NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
