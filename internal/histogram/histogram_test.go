package histogram

import (
	"errors"
	"testing"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

func TestEmptyCollectorSnapshotsToZero(t *testing.T) {
	c := New(LatencyOneWay)
	snap := c.Snapshot([]float64{50, 99})
	if snap.TotalSamples != 0 {
		t.Fatalf("TotalSamples = %d, want 0", snap.TotalSamples)
	}
	if snap.MinNs != 0 || snap.MaxNs != 0 || snap.MeanNs != 0 {
		t.Fatalf("expected zeroed metrics on empty collector, got %+v", snap)
	}
	if len(snap.Percentiles) != 2 {
		t.Fatalf("len(Percentiles) = %d, want 2", len(snap.Percentiles))
	}
}

func TestRecordAndSnapshot(t *testing.T) {
	c := New(LatencyRoundTrip)
	for i := 1; i <= 100; i++ {
		if err := c.Record(time.Duration(i) * time.Microsecond); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	snap := c.Snapshot([]float64{50, 99})
	if snap.TotalSamples != 100 {
		t.Fatalf("TotalSamples = %d, want 100", snap.TotalSamples)
	}
	if snap.MinNs <= 0 {
		t.Fatalf("MinNs = %d, want > 0", snap.MinNs)
	}
	if snap.MaxNs < snap.MinNs {
		t.Fatalf("MaxNs (%d) < MinNs (%d)", snap.MaxNs, snap.MinNs)
	}
}

func TestMergeIsCommutative(t *testing.T) {
	a := New(LatencyOneWay)
	b := New(LatencyOneWay)
	for i := 1; i <= 50; i++ {
		a.Record(time.Duration(i) * time.Microsecond)
	}
	for i := 51; i <= 100; i++ {
		b.Record(time.Duration(i) * time.Microsecond)
	}

	ab := New(LatencyOneWay).Merge(a).Merge(b)
	ba := New(LatencyOneWay).Merge(b).Merge(a)

	sa := ab.Snapshot([]float64{50, 99})
	sb := ba.Snapshot([]float64{50, 99})

	if sa.TotalSamples != sb.TotalSamples {
		t.Fatalf("merge order changed sample count: %d vs %d", sa.TotalSamples, sb.TotalSamples)
	}
	if sa.TotalSamples != 100 {
		t.Fatalf("TotalSamples = %d, want 100", sa.TotalSamples)
	}
	for i := range sa.Percentiles {
		if sa.Percentiles[i].ValueNs != sb.Percentiles[i].ValueNs {
			t.Fatalf("percentile %v differs by merge order: %d vs %d",
				sa.Percentiles[i].Percentile, sa.Percentiles[i].ValueNs, sb.Percentiles[i].ValueNs)
		}
	}
}

func TestMergeAllSumsSampleCounts(t *testing.T) {
	collectors := make([]*Collector, 4)
	for i := range collectors {
		collectors[i] = New(LatencyRoundTrip)
		for j := 1; j <= 25; j++ {
			collectors[i].Record(time.Duration(i*100+j) * time.Microsecond)
		}
	}
	merged := MergeAll(LatencyRoundTrip, collectors)
	snap := merged.Snapshot([]float64{99})
	if snap.TotalSamples != 100 {
		t.Fatalf("TotalSamples = %d, want 100", snap.TotalSamples)
	}
}

func TestBelowMinimumClampsUp(t *testing.T) {
	c := New(LatencyOneWay)
	if err := c.Record(0); err != nil {
		t.Fatalf("Record(0): %v", err)
	}
	snap := c.Snapshot(nil)
	if snap.TotalSamples != 1 {
		t.Fatalf("TotalSamples = %d, want 1", snap.TotalSamples)
	}
	if snap.MinNs != minTrackableNs {
		t.Fatalf("MinNs = %d, want clamp to %d", snap.MinNs, minTrackableNs)
	}
}

func TestAboveMaximumIsRejectedNotClamped(t *testing.T) {
	c := New(LatencyOneWay)
	err := c.Record(2 * time.Minute)
	if err == nil {
		t.Fatal("expected an error for a sample exceeding the tracked maximum")
	}
	if !errors.Is(err, api.ErrCorruption) {
		t.Fatalf("expected a corruption error, got %v", err)
	}
	snap := c.Snapshot(nil)
	if snap.TotalSamples != 0 {
		t.Fatalf("rejected sample must not be recorded, got TotalSamples = %d", snap.TotalSamples)
	}
}

func TestReset(t *testing.T) {
	c := New(LatencyOneWay)
	c.Record(time.Millisecond)
	c.Reset()
	snap := c.Snapshot(nil)
	if snap.TotalSamples != 0 {
		t.Fatalf("TotalSamples after Reset = %d, want 0", snap.TotalSamples)
	}
}
