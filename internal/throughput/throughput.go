// Package throughput tracks message and byte counts against wall-clock
// elapsed time, grounded on original_source/src/metrics.rs's
// ThroughputCalculator.
package throughput

import (
	"sync"
	"time"
)

// Metrics is a point-in-time snapshot of a Counter.
type Metrics struct {
	MessagesPerSecond float64
	BytesPerSecond    float64
	TotalMessages     uint64
	TotalBytes        uint64
	ElapsedNs         int64
}

// Counter accumulates message/byte counts from a start instant. A zero
// Counter is not usable; construct with New.
type Counter struct {
	mu        sync.Mutex
	start     time.Time
	messages  uint64
	bytes     uint64
	stopped   bool
	elapsedAt time.Duration
}

// New starts a Counter with its clock running.
func New() *Counter {
	return &Counter{start: time.Now()}
}

// Record accounts for one transmitted message of the given size in bytes.
func (c *Counter) Record(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages++
	c.bytes += uint64(size)
}

// Stop freezes the elapsed-time measurement without blocking further
// Record calls from contributing to the counts; used when a worker reaches
// DRAIN before the overall run's window closes.
func (c *Counter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.elapsedAt = time.Since(c.start)
		c.stopped = true
	}
}

// Snapshot computes rates from the counts recorded so far. Rates are zero
// when elapsed time is zero, matching the original's guard against
// division by zero on an instantaneous snapshot.
func (c *Counter) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.elapsedAt
	if !c.stopped {
		elapsed = time.Since(c.start)
	}
	secs := elapsed.Seconds()

	m := Metrics{
		TotalMessages: c.messages,
		TotalBytes:    c.bytes,
		ElapsedNs:     elapsed.Nanoseconds(),
	}
	if secs > 0 {
		m.MessagesPerSecond = float64(c.messages) / secs
		m.BytesPerSecond = float64(c.bytes) / secs
	}
	return m
}

// Reset clears counts and restarts the clock.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = 0
	c.bytes = 0
	c.stopped = false
	c.start = time.Now()
}

// Merge combines counters from multiple workers into aggregate metrics: the
// message/byte counts sum, and elapsed time takes the maximum across
// workers so the reported rate reflects the slowest (wall-clock-bounding)
// participant, per the result aggregator's merge rules.
func Merge(snapshots []Metrics) Metrics {
	var total Metrics
	for _, s := range snapshots {
		total.TotalMessages += s.TotalMessages
		total.TotalBytes += s.TotalBytes
		if s.ElapsedNs > total.ElapsedNs {
			total.ElapsedNs = s.ElapsedNs
		}
	}
	secs := time.Duration(total.ElapsedNs).Seconds()
	if secs > 0 {
		total.MessagesPerSecond = float64(total.TotalMessages) / secs
		total.BytesPerSecond = float64(total.TotalBytes) / secs
	}
	return total
}
