package throughput

import (
	"testing"
	"time"
)

func TestZeroElapsedHasZeroRates(t *testing.T) {
	c := &Counter{start: time.Now(), stopped: true}
	c.Record(100)
	snap := c.Snapshot()
	if snap.TotalMessages != 1 || snap.TotalBytes != 100 {
		t.Fatalf("counts = %+v, want messages=1 bytes=100", snap)
	}
	if snap.MessagesPerSecond != 0 || snap.BytesPerSecond != 0 {
		t.Fatalf("rates = %+v, want zero rates for zero elapsed", snap)
	}
}

func TestRecordAccumulates(t *testing.T) {
	c := New()
	for i := 0; i < 10; i++ {
		c.Record(64)
	}
	snap := c.Snapshot()
	if snap.TotalMessages != 10 {
		t.Fatalf("TotalMessages = %d, want 10", snap.TotalMessages)
	}
	if snap.TotalBytes != 640 {
		t.Fatalf("TotalBytes = %d, want 640", snap.TotalBytes)
	}
}

func TestStopFreezesElapsed(t *testing.T) {
	c := New()
	c.Record(1)
	time.Sleep(2 * time.Millisecond)
	c.Stop()
	first := c.Snapshot()
	time.Sleep(2 * time.Millisecond)
	second := c.Snapshot()
	if first.ElapsedNs != second.ElapsedNs {
		t.Fatalf("elapsed changed after Stop: %d then %d", first.ElapsedNs, second.ElapsedNs)
	}
}

func TestMergeSumsCountsAndTakesMaxElapsed(t *testing.T) {
	snapshots := []Metrics{
		{TotalMessages: 10, TotalBytes: 1000, ElapsedNs: int64(time.Second)},
		{TotalMessages: 20, TotalBytes: 2000, ElapsedNs: int64(2 * time.Second)},
	}
	merged := Merge(snapshots)
	if merged.TotalMessages != 30 {
		t.Fatalf("TotalMessages = %d, want 30", merged.TotalMessages)
	}
	if merged.TotalBytes != 3000 {
		t.Fatalf("TotalBytes = %d, want 3000", merged.TotalBytes)
	}
	if merged.ElapsedNs != int64(2*time.Second) {
		t.Fatalf("ElapsedNs = %d, want max of inputs", merged.ElapsedNs)
	}
	wantRate := 30.0 / 2.0
	if merged.MessagesPerSecond != wantRate {
		t.Fatalf("MessagesPerSecond = %v, want %v", merged.MessagesPerSecond, wantRate)
	}
}

func TestMergeEmptyIsZero(t *testing.T) {
	merged := Merge(nil)
	if merged.TotalMessages != 0 || merged.MessagesPerSecond != 0 {
		t.Fatalf("Merge(nil) = %+v, want zero value", merged)
	}
}

func TestReset(t *testing.T) {
	c := New()
	c.Record(500)
	c.Reset()
	snap := c.Snapshot()
	if snap.TotalMessages != 0 || snap.TotalBytes != 0 {
		t.Fatalf("after Reset = %+v, want zero counts", snap)
	}
}
