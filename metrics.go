package fidsync

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    resyncCounter   prometheus.Counter
//	    resyncHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordResync(remapped int, duration time.Duration, err error) {
//	    p.resyncCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordResync is called after each resync.
	// remapped is the number of remap entries applied, duration is the total
	// time taken, err is nil if successful.
	RecordResync(remapped int, duration time.Duration, err error)

	// RecordIndexPatch is called after each sidecar index patch attempt.
	// dropped reports whether the index had to be deleted.
	RecordIndexPatch(duration time.Duration, dropped bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordResync(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordIndexPatch(time.Duration, bool)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ResyncCount      atomic.Int64
	ResyncErrors     atomic.Int64
	ResyncTotalNanos atomic.Int64
	RemappedRows     atomic.Int64
	IndexPatchCount  atomic.Int64
	IndexesDropped   atomic.Int64
}

// RecordResync implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResync(remapped int, duration time.Duration, err error) {
	b.ResyncCount.Add(1)
	b.ResyncTotalNanos.Add(duration.Nanoseconds())
	b.RemappedRows.Add(int64(remapped))
	if err != nil {
		b.ResyncErrors.Add(1)
	}
}

// RecordIndexPatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexPatch(duration time.Duration, dropped bool) {
	b.IndexPatchCount.Add(1)
	if dropped {
		b.IndexesDropped.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ResyncCount:     b.ResyncCount.Load(),
		ResyncErrors:    b.ResyncErrors.Load(),
		ResyncAvgNanos:  b.getAvgResyncNanos(),
		RemappedRows:    b.RemappedRows.Load(),
		IndexPatchCount: b.IndexPatchCount.Load(),
		IndexesDropped:  b.IndexesDropped.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgResyncNanos() int64 {
	count := b.ResyncCount.Load()
	if count == 0 {
		return 0
	}
	return b.ResyncTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ResyncCount     int64
	ResyncErrors    int64
	ResyncAvgNanos  int64
	RemappedRows    int64
	IndexPatchCount int64
	IndexesDropped  int64
}
