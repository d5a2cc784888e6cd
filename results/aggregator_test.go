package results

import "testing"

func benchResult(mechanism string, avgBytesPerS, meanLatencyNs float64, messages uint64) BenchmarkResults {
	return BenchmarkResults{
		Mechanism: mechanism,
		Summary: ResultSummary{
			TotalMessages: messages,
			PeakBytesPerS: avgBytesPerS,
		},
		RoundTrip: &PerformanceMetrics{
			Latency: &LatencySummary{MeanNs: meanLatencyNs},
		},
	}
}

func TestAggregatePicksFastestAndLowestLatency(t *testing.T) {
	all := []BenchmarkResults{
		benchResult("tcp", 1000, 500, 100),
		benchResult("shm", 5000, 100, 100),
		benchResult("uds", 2000, 300, 100),
	}
	summary := Aggregate(all)
	if summary.FastestMechanism != "shm" {
		t.Fatalf("fastest = %q, want shm", summary.FastestMechanism)
	}
	if summary.LowestLatencyMech != "shm" {
		t.Fatalf("lowest latency = %q, want shm", summary.LowestLatencyMech)
	}
	if summary.TotalMessages != 300 {
		t.Fatalf("total messages = %d, want 300", summary.TotalMessages)
	}
}

func TestAggregateBreaksTiesByName(t *testing.T) {
	all := []BenchmarkResults{
		benchResult("zeta", 1000, 100, 10),
		benchResult("alpha", 1000, 100, 10),
	}
	summary := Aggregate(all)
	if summary.FastestMechanism != "alpha" {
		t.Fatalf("fastest = %q, want alpha (lexicographic tie-break)", summary.FastestMechanism)
	}
	if summary.LowestLatencyMech != "alpha" {
		t.Fatalf("lowest latency = %q, want alpha (lexicographic tie-break)", summary.LowestLatencyMech)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	summary := Aggregate(nil)
	if summary.FastestMechanism != "" || summary.LowestLatencyMech != "" {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestMergePerformanceMetricsSumsAndTakesMaxDuration(t *testing.T) {
	workers := []PerformanceMetrics{
		{Throughput: ThroughputSummary{TotalMessages: 100, TotalBytes: 1000, ElapsedNs: 1_000_000_000}},
		{Throughput: ThroughputSummary{TotalMessages: 50, TotalBytes: 500, ElapsedNs: 2_000_000_000}},
	}
	merged := MergePerformanceMetrics(workers, nil)
	if merged.Throughput.TotalMessages != 150 {
		t.Fatalf("total messages = %d, want 150", merged.Throughput.TotalMessages)
	}
	if merged.Throughput.ElapsedNs != 2_000_000_000 {
		t.Fatalf("elapsed = %d, want max 2e9", merged.Throughput.ElapsedNs)
	}
	wantRate := float64(150) / 2.0
	if merged.Throughput.MessagesPerSecond != wantRate {
		t.Fatalf("rate = %f, want %f", merged.Throughput.MessagesPerSecond, wantRate)
	}
}
