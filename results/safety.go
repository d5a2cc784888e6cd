package results

import "github.com/redhat-performance/rusty-comms-sub000/internal/histogram"

// ASILLevel names an automotive safety-integrity level, from
// original_source/src/automotive_metrics.rs::AsilLevel. It is carried here
// purely as a reporting classification; it never feeds back into the
// measurement loop.
type ASILLevel string

const (
	ASILQM ASILLevel = "QM"
	ASILA  ASILLevel = "A"
	ASILB  ASILLevel = "B"
	ASILC  ASILLevel = "C"
	ASILD  ASILLevel = "D"
)

// asilBudget pairs an ASIL level with the maximum one-way latency budget
// (nanoseconds) original_source/src/automotive_metrics.rs::AutomotiveApplication
// assigns it.
var asilBudgets = []struct {
	level    ASILLevel
	budgetNs int64
}{
	{ASILD, 100_000},        // life-critical: <100us
	{ASILC, 1_000_000},      // safety-critical: <1ms
	{ASILB, 10_000_000},     // real-time control: <10ms
	{ASILA, 100_000_000},    // comfort systems: <100ms
	{ASILQM, 1_000_000_000}, // infotainment/diagnostics: best effort <1s
}

// SafetyProfile is a best-effort, post-hoc classification derived from an
// already-collected latency histogram: a deadline-miss ratio against a
// configurable budget, and jitter expressed as p99.9 minus p50. It never
// influences the measurement loop and carries no automotive-grade
// certification weight.
type SafetyProfile struct {
	Level             ASILLevel `json:"asil_level"`
	LatencyBudgetNs   int64     `json:"latency_budget_ns"`
	DeadlineMisses    int64     `json:"deadline_misses"`
	TotalSamples      int64     `json:"total_samples"`
	DeadlineMissRatio float64   `json:"deadline_miss_ratio"`
	JitterNs          float64   `json:"jitter_ns"`
	Compliant         bool      `json:"compliant"`
}

// ClassifyASIL picks the tightest ASIL budget the observed p99 latency
// still satisfies, matching AutomotiveApplication::required_asil_level's
// intent without replicating its full application taxonomy.
func ClassifyASIL(p99Ns float64) ASILLevel {
	for _, b := range asilBudgets {
		if p99Ns <= float64(b.budgetNs) {
			return b.level
		}
	}
	return ASILQM
}

// EvaluateSafety computes a SafetyProfile for a histogram snapshot against
// a latency budget in nanoseconds. deadlineMisses is the caller-supplied
// number of error/deadline-miss events observed outside the histogram
// (e.g. transport errors); histogram samples above budgetNs are not
// counted as misses, since the histogram only stores successful latencies.
func EvaluateSafety(metrics histogram.LatencyMetrics, budgetNs int64, deadlineMisses int64) SafetyProfile {
	level := ClassifyASIL(p99From(metrics))
	profile := SafetyProfile{
		Level:           level,
		LatencyBudgetNs: budgetNs,
		DeadlineMisses:  deadlineMisses,
		TotalSamples:    metrics.TotalSamples,
	}
	if metrics.TotalSamples > 0 {
		profile.DeadlineMissRatio = float64(deadlineMisses) / float64(metrics.TotalSamples)
	}
	profile.JitterNs = p999From(metrics) - metrics.MedianNs
	profile.Compliant = profile.DeadlineMissRatio == 0 && int64(p99From(metrics)) <= budgetNs
	return profile
}

func p99From(m histogram.LatencyMetrics) float64 {
	for _, p := range m.Percentiles {
		if p.Percentile == 99 {
			return float64(p.ValueNs)
		}
	}
	return float64(m.MaxNs)
}

func p999From(m histogram.LatencyMetrics) float64 {
	for _, p := range m.Percentiles {
		if p.Percentile == 99.9 {
			return float64(p.ValueNs)
		}
	}
	return float64(m.MaxNs)
}
