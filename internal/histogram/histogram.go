// Package histogram wraps github.com/HdrHistogram/hdrhistogram-go into the
// latency collector the benchmark driver and result aggregator share.
//
// Unlike the original implementation, which reconstructed a merged
// histogram from a linear-spaced value dump on each worker and summed those
// approximations, Collector.Merge performs a real HDR bucket union via the
// library's own Merge, so combining per-worker collectors is exact and
// associative regardless of worker count or recording order.
package histogram

import (
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

const (
	minTrackableNs       = 1
	maxTrackableNs       = int64(60 * time.Second)
	significantFigures   = 3
	defaultMergeCapacity = 2
)

// LatencyKind distinguishes one-way from round-trip measurement, matching
// the two modes the benchmark driver can run.
type LatencyKind int

const (
	LatencyOneWay LatencyKind = iota
	LatencyRoundTrip
)

func (k LatencyKind) String() string {
	if k == LatencyRoundTrip {
		return "round_trip"
	}
	return "one_way"
}

// PercentileValue pairs a requested percentile with the observed value, in
// nanoseconds.
type PercentileValue struct {
	Percentile float64
	ValueNs    int64
}

// LatencyMetrics is a point-in-time snapshot of a Collector.
type LatencyMetrics struct {
	Kind         LatencyKind
	MinNs        int64
	MaxNs        int64
	MeanNs       float64
	MedianNs     float64
	StdDevNs     float64
	Percentiles  []PercentileValue
	TotalSamples int64
}

// Collector accumulates latency samples into an HDR histogram. A zero
// Collector is not usable; construct with New. Safe for concurrent use by a
// single writer and arbitrarily many readers calling Snapshot; concurrent
// Record calls from multiple goroutines are not supported, matching every
// transport's single-writer measurement loop.
type Collector struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
	kind LatencyKind
}

// New builds a Collector tracking values from 1ns to 60s with 3 significant
// decimal digits of precision, matching the original implementation's
// histogram configuration.
func New(kind LatencyKind) *Collector {
	return &Collector{
		hist: hdrhistogram.New(minTrackableNs, maxTrackableNs, significantFigures),
		kind: kind,
	}
}

// Record adds a latency sample. A value below the trackable minimum is
// clamped up to it (sub-nanosecond timer noise, not a real reading); a
// value exceeding the tracked maximum (60s) is rejected as a corruption
// error rather than clamped, since folding it into the top bucket would
// violate percentile(100) >= every recorded sample.
func (c *Collector) Record(latency time.Duration) error {
	ns := latency.Nanoseconds()
	if ns < minTrackableNs {
		ns = minTrackableNs
	}
	if ns > maxTrackableNs {
		return api.NewError(api.KindCorruption, "latency sample exceeds tracked maximum", api.ErrCorruption).
			WithContext("value_ns", ns).WithContext("max_ns", maxTrackableNs)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.hist.RecordValue(ns); err != nil {
		return api.NewError(api.KindAggregation, "record latency sample", err)
	}
	return nil
}

// Merge folds other's samples into c in place and returns c for chaining.
// It is the harness's replacement for the original's lossy
// histogram-data-export reconstruction: the underlying HDR buckets are
// unioned directly, so Merge is associative and commutative regardless of
// which collector accumulated which samples.
func (c *Collector) Merge(other *Collector) *Collector {
	if other == nil {
		return c
	}
	other.mu.Lock()
	snapshot := other.hist.Export()
	other.mu.Unlock()

	imported := hdrhistogram.Import(snapshot)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.hist.Merge(imported)
	return c
}

// MergeAll merges a batch of per-worker collectors into a single fresh one.
func MergeAll(kind LatencyKind, collectors []*Collector) *Collector {
	merged := New(kind)
	for _, c := range collectors {
		merged.Merge(c)
	}
	return merged
}

// Snapshot computes a LatencyMetrics for the requested percentiles (e.g.
// 50, 90, 95, 99, 99.9). An empty Collector snapshots to all-zero fields
// rather than panicking or returning an error.
func (c *Collector) Snapshot(percentiles []float64) LatencyMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hist.TotalCount()
	metrics := LatencyMetrics{
		Kind:         c.kind,
		TotalSamples: total,
	}
	if total == 0 {
		metrics.Percentiles = make([]PercentileValue, len(percentiles))
		for i, p := range percentiles {
			metrics.Percentiles[i] = PercentileValue{Percentile: p}
		}
		return metrics
	}

	metrics.MinNs = c.hist.Min()
	metrics.MaxNs = c.hist.Max()
	metrics.MeanNs = c.hist.Mean()
	metrics.StdDevNs = c.hist.StdDev()
	metrics.MedianNs = float64(c.hist.ValueAtQuantile(50))

	metrics.Percentiles = make([]PercentileValue, len(percentiles))
	for i, p := range percentiles {
		metrics.Percentiles[i] = PercentileValue{
			Percentile: p,
			ValueNs:    c.hist.ValueAtQuantile(p),
		}
	}
	return metrics
}

// Reset clears all recorded samples, keeping the collector's configuration.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hist.Reset()
}

// Kind reports which measurement mode this collector was created for.
func (c *Collector) Kind() LatencyKind { return c.kind }
