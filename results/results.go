// Package results defines the benchmark result record, the JSON writers
// that serialize it (spec.md §6 "Results file"), and the cross-mechanism
// aggregator (spec.md §4.10).
package results

import (
	"runtime"
	"strconv"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/internal/histogram"
	"github.com/redhat-performance/rusty-comms-sub000/internal/throughput"
)

// SchemaVersion is embedded in every results file's metadata block.
const SchemaVersion = "1"

// SystemInfo is collected by CollectSystemInfo for each BenchmarkResults
// record and for each results file's metadata, matching original_source/src/results.rs::SystemInfo.
type SystemInfo struct {
	Hostname      string `json:"hostname"`
	CPUCount      int    `json:"cpu_count"`
	GoVersion     string `json:"go_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	CollectedAtNs int64  `json:"collected_at_unix_nanos"`
}

// CollectSystemInfo builds a SystemInfo for the current process.
func CollectSystemInfo(hostname string, now time.Time) SystemInfo {
	return SystemInfo{
		Hostname:      hostname,
		CPUCount:      runtime.NumCPU(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		CollectedAtNs: now.UnixNano(),
	}
}

// LatencySummary mirrors internal/histogram.LatencyMetrics in the shape the
// results file exposes (field names are the public JSON contract, so they
// are kept separate from the internal histogram package's own type).
type LatencySummary struct {
	TotalSamples int64              `json:"total_samples"`
	MinNs        int64              `json:"min_ns"`
	MaxNs        int64              `json:"max_ns"`
	MeanNs       float64            `json:"mean_ns"`
	StdDevNs     float64            `json:"stddev_ns"`
	Percentiles  map[string]float64 `json:"percentiles"`
}

func latencySummaryFrom(m histogram.LatencyMetrics) LatencySummary {
	percentiles := make(map[string]float64, len(m.Percentiles))
	for _, p := range m.Percentiles {
		percentiles[formatPercentileKey(p.Percentile)] = p.ValueNs
	}
	return LatencySummary{
		TotalSamples: m.TotalSamples,
		MinNs:        m.MinNs,
		MaxNs:        m.MaxNs,
		MeanNs:       m.MeanNs,
		StdDevNs:     m.StdDevNs,
		Percentiles:  percentiles,
	}
}

func formatPercentileKey(p float64) string {
	if p == float64(int64(p)) {
		return "p" + strconv.FormatInt(int64(p), 10)
	}
	return "p" + strconv.FormatFloat(p, 'f', -1, 64)
}

// ThroughputSummary mirrors internal/throughput.Metrics for the results
// file's public JSON contract.
type ThroughputSummary struct {
	TotalMessages     uint64  `json:"total_messages"`
	TotalBytes        uint64  `json:"total_bytes"`
	ElapsedNs         int64   `json:"elapsed_ns"`
	MessagesPerSecond float64 `json:"messages_per_second"`
	BytesPerSecond    float64 `json:"bytes_per_second"`
}

func throughputSummaryFrom(m throughput.Metrics) ThroughputSummary {
	return ThroughputSummary{
		TotalMessages:     m.TotalMessages,
		TotalBytes:        m.TotalBytes,
		ElapsedNs:         m.ElapsedNs,
		MessagesPerSecond: m.MessagesPerSecond,
		BytesPerSecond:    m.BytesPerSecond,
	}
}

// PerformanceMetrics composites an optional latency summary (absent for
// pure throughput runs) with a throughput record, per spec.md §3.
type PerformanceMetrics struct {
	Latency       *LatencySummary   `json:"latency,omitempty"`
	Throughput    ThroughputSummary `json:"throughput"`
	CollectedAtNs int64             `json:"collected_at_unix_nanos"`
}

// NewPerformanceMetrics builds a PerformanceMetrics from raw collector
// snapshots, timestamped at collection time.
func NewPerformanceMetrics(lat *histogram.LatencyMetrics, tp throughput.Metrics, now time.Time) PerformanceMetrics {
	pm := PerformanceMetrics{Throughput: throughputSummaryFrom(tp), CollectedAtNs: now.UnixNano()}
	if lat != nil {
		s := latencySummaryFrom(*lat)
		pm.Latency = &s
	}
	return pm
}

// ResultSummary is the top-level roll-up embedded in BenchmarkResults:
// totals, peak throughput, and headline latency figures.
type ResultSummary struct {
	TotalMessages    uint64  `json:"total_messages"`
	TotalBytes       uint64  `json:"total_bytes"`
	PeakMessagesPerS float64 `json:"peak_messages_per_second"`
	PeakBytesPerS    float64 `json:"peak_bytes_per_second"`
	MinLatencyNs     int64   `json:"min_latency_ns"`
	MaxLatencyNs     int64   `json:"max_latency_ns"`
	P95Ns            float64 `json:"p95_ns"`
	P99Ns            float64 `json:"p99_ns"`
}

// BenchmarkResults is the per-mechanism record specified in spec.md §3.
type BenchmarkResults struct {
	Mechanism      string              `json:"mechanism"`
	Config         TestConfig          `json:"config"`
	OneWay         *PerformanceMetrics `json:"one_way_results,omitempty"`
	RoundTrip      *PerformanceMetrics `json:"round_trip_results,omitempty"`
	Safety         *SafetyProfile      `json:"safety_profile,omitempty"`
	Summary        ResultSummary       `json:"summary"`
	TestDurationNs int64               `json:"test_duration_ns"`
	System         SystemInfo          `json:"system_info"`
	TimestampUnix  int64               `json:"timestamp_unix"`
	Errors         []string            `json:"errors,omitempty"`
}

// TestConfig records the inputs a run was driven with, echoed verbatim
// into the results file for reproducibility.
type TestConfig struct {
	Mechanism        string    `json:"mechanism"`
	MessageSize      int       `json:"message_size"`
	Iterations       int       `json:"iterations,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds,omitempty"`
	WarmupIterations int       `json:"warmup_iterations"`
	Concurrency      int       `json:"concurrency"`
	BufferSize       int       `json:"buffer_size"`
	Percentiles      []float64 `json:"percentiles"`
}

// Summarize derives a ResultSummary from the collected one-way/round-trip
// metrics, preferring round-trip figures when both are present.
func Summarize(oneWay, roundTrip *PerformanceMetrics) ResultSummary {
	primary := roundTrip
	if primary == nil {
		primary = oneWay
	}
	var summary ResultSummary
	for _, pm := range []*PerformanceMetrics{oneWay, roundTrip} {
		if pm == nil {
			continue
		}
		summary.TotalMessages += pm.Throughput.TotalMessages
		summary.TotalBytes += pm.Throughput.TotalBytes
		if pm.Throughput.MessagesPerSecond > summary.PeakMessagesPerS {
			summary.PeakMessagesPerS = pm.Throughput.MessagesPerSecond
		}
		if pm.Throughput.BytesPerSecond > summary.PeakBytesPerS {
			summary.PeakBytesPerS = pm.Throughput.BytesPerSecond
		}
	}
	if primary != nil && primary.Latency != nil {
		summary.MinLatencyNs = primary.Latency.MinNs
		summary.MaxLatencyNs = primary.Latency.MaxNs
		summary.P95Ns = primary.Latency.Percentiles["p95"]
		summary.P99Ns = primary.Latency.Percentiles["p99"]
	}
	return summary
}
