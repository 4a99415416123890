package mmapbits

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
//	    flushHistogram prometheus.Histogram
//	    setBitsCounter prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordFlush(duration time.Duration, err error) {
//	    p.flushHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordOpen is called after a store is opened and mapped.
	RecordOpen(size int64, duration time.Duration, err error)

	// RecordFlush is called after each flush to stable storage.
	RecordFlush(duration time.Duration, err error)

	// RecordClose is called once when the store is released.
	RecordClose(err error)

	// RecordSetBits is called for each mutation. It sits on the hot path
	// of a bulk load and must be cheap.
	RecordSetBits(err error)

	// RecordLoad is called after each bulk load with the number of records applied.
	RecordLoad(lines int64, duration time.Duration, err error)

	// RecordSnapshot is called after each export or import.
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordFlush(time.Duration, error)       {}
func (NoopMetricsCollector) RecordClose(error)                      {}
func (NoopMetricsCollector) RecordSetBits(error)                    {}
func (NoopMetricsCollector) RecordLoad(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	MappedBytes     atomic.Int64
	FlushCount      atomic.Int64
	FlushErrors     atomic.Int64
	FlushTotalNanos atomic.Int64
	CloseCount      atomic.Int64
	CloseErrors     atomic.Int64
	SetBitsCount    atomic.Int64
	SetBitsErrors   atomic.Int64
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	LoadLines       atomic.Int64
	SnapshotCount   atomic.Int64
	SnapshotErrors  atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(size int64, _ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
		return
	}
	b.MappedBytes.Add(size)
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordClose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClose(err error) {
	b.CloseCount.Add(1)
	if err != nil {
		b.CloseErrors.Add(1)
	}
}

// RecordSetBits implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSetBits(err error) {
	b.SetBitsCount.Add(1)
	if err != nil {
		b.SetBitsErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(lines int64, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadLines.Add(lines)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(_ time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		OpenCount:      b.OpenCount.Load(),
		OpenErrors:     b.OpenErrors.Load(),
		MappedBytes:    b.MappedBytes.Load(),
		FlushCount:     b.FlushCount.Load(),
		FlushErrors:    b.FlushErrors.Load(),
		FlushAvgNanos:  b.getAvgFlushNanos(),
		CloseCount:     b.CloseCount.Load(),
		CloseErrors:    b.CloseErrors.Load(),
		SetBitsCount:   b.SetBitsCount.Load(),
		SetBitsErrors:  b.SetBitsErrors.Load(),
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		LoadLines:      b.LoadLines.Load(),
		SnapshotCount:  b.SnapshotCount.Load(),
		SnapshotErrors: b.SnapshotErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgFlushNanos() int64 {
	count := b.FlushCount.Load()
	if count == 0 {
		return 0
	}
	return b.FlushTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	OpenCount      int64
	OpenErrors     int64
	MappedBytes    int64
	FlushCount     int64
	FlushErrors    int64
	FlushAvgNanos  int64
	CloseCount     int64
	CloseErrors    int64
	SetBitsCount   int64
	SetBitsErrors  int64
	LoadCount      int64
	LoadErrors     int64
	LoadLines      int64
	SnapshotCount  int64
	SnapshotErrors int64
}
