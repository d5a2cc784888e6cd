package results

import "sort"

// CrossMechanismSummary ranks a batch of per-mechanism BenchmarkResults:
// totals, the fastest mechanism by average bytes/sec, and the
// lowest-latency mechanism by mean latency. Ties are broken by mechanism
// name lexicographic order (spec.md §4.10).
type CrossMechanismSummary struct {
	TotalMessages     uint64             `json:"total_messages"`
	TotalBytes        uint64             `json:"total_bytes"`
	TotalErrors       int                `json:"total_errors"`
	FastestMechanism  string             `json:"fastest_mechanism"`
	LowestLatencyMech string             `json:"lowest_latency_mechanism"`
	PerMechanism      []MechanismSummary `json:"per_mechanism"`
}

// MechanismSummary is the per-mechanism row embedded in a
// CrossMechanismSummary.
type MechanismSummary struct {
	Mechanism     string  `json:"mechanism"`
	AvgBytesPerS  float64 `json:"avg_bytes_per_second"`
	MeanLatencyNs float64 `json:"mean_latency_ns"`
	P95Ns         float64 `json:"p95_ns"`
	P99Ns         float64 `json:"p99_ns"`
	MessageCount  uint64  `json:"message_count"`
}

// Aggregate builds a CrossMechanismSummary from a batch of results,
// collected across however many mechanisms a run requested.
func Aggregate(all []BenchmarkResults) CrossMechanismSummary {
	summary := CrossMechanismSummary{}
	rows := make([]MechanismSummary, 0, len(all))

	for _, r := range all {
		summary.TotalMessages += r.Summary.TotalMessages
		summary.TotalBytes += r.Summary.TotalBytes
		summary.TotalErrors += len(r.Errors)

		primary := r.RoundTrip
		if primary == nil {
			primary = r.OneWay
		}
		row := MechanismSummary{
			Mechanism:    r.Mechanism,
			AvgBytesPerS: r.Summary.PeakBytesPerS,
			MessageCount: r.Summary.TotalMessages,
			P95Ns:        r.Summary.P95Ns,
			P99Ns:        r.Summary.P99Ns,
		}
		if primary != nil && primary.Latency != nil {
			row.MeanLatencyNs = primary.Latency.MeanNs
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Mechanism < rows[j].Mechanism })
	summary.PerMechanism = rows

	summary.FastestMechanism = pickBy(rows, func(a, b MechanismSummary) bool {
		return a.AvgBytesPerS > b.AvgBytesPerS
	})
	summary.LowestLatencyMech = pickBy(rows, func(a, b MechanismSummary) bool {
		if a.MeanLatencyNs == 0 {
			return false
		}
		if b.MeanLatencyNs == 0 {
			return true
		}
		return a.MeanLatencyNs < b.MeanLatencyNs
	})
	return summary
}

// pickBy returns the mechanism name of the row that wins under better,
// with ties already resolved by rows' lexicographic pre-sort (the first
// equally-good row in name order wins).
func pickBy(rows []MechanismSummary, better func(a, b MechanismSummary) bool) string {
	if len(rows) == 0 {
		return ""
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if better(r, best) {
			best = r
		}
	}
	return best.Mechanism
}

// MergePerformanceMetrics combines per-worker PerformanceMetrics into one,
// per spec.md §4.10: throughput fields sum, duration is the max across
// workers, derived rates are recomputed, and latency fields merge by
// histogram union — callers pass already-merged latency summaries since
// this package only sees post-snapshot data (the real HDR union happens in
// internal/histogram.MergeAll before results are built).
func MergePerformanceMetrics(workers []PerformanceMetrics, mergedLatency *LatencySummary) PerformanceMetrics {
	var totalMessages, totalBytes uint64
	var maxElapsed int64
	for _, w := range workers {
		totalMessages += w.Throughput.TotalMessages
		totalBytes += w.Throughput.TotalBytes
		if w.Throughput.ElapsedNs > maxElapsed {
			maxElapsed = w.Throughput.ElapsedNs
		}
	}
	merged := PerformanceMetrics{
		Throughput: ThroughputSummary{
			TotalMessages: totalMessages,
			TotalBytes:    totalBytes,
			ElapsedNs:     maxElapsed,
		},
		Latency: mergedLatency,
	}
	if secs := float64(maxElapsed) / 1e9; secs > 0 {
		merged.Throughput.MessagesPerSecond = float64(totalMessages) / secs
		merged.Throughput.BytesPerSecond = float64(totalBytes) / secs
	}
	return merged
}
