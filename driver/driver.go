package driver

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/control"
	"github.com/redhat-performance/rusty-comms-sub000/internal/concurrency"
	"github.com/redhat-performance/rusty-comms-sub000/internal/histogram"
	"github.com/redhat-performance/rusty-comms-sub000/results"
	"github.com/redhat-performance/rusty-comms-sub000/transport"
)

// Driver owns the blocking-task pool transport setup is dispatched through
// (spec.md §5's cooperative reactor + bounded blocking-task pool model),
// the logger every lifecycle transition and retry event is reported
// through, and a read-only observability layer (live per-mechanism
// metrics and debug probes) a caller can poll independent of the results
// file.
type Driver struct {
	log     *zap.Logger
	pool    *concurrency.Pool
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

// New builds a Driver. workers sizes the blocking-task pool; 0 defaults to
// runtime.NumCPU.
func New(log *zap.Logger, workers int) *Driver {
	debug := control.NewDebugProbes()
	control.RegisterPlatformProbes(debug)
	debug.RegisterProbe("driver.pool.workers", func() any { return workers })

	return &Driver{
		log:     log,
		pool:    concurrency.NewPool(workers),
		metrics: control.NewMetricsRegistry(),
		debug:   debug,
	}
}

// Close releases the driver's worker pool.
func (d *Driver) Close() {
	d.pool.Close()
}

// MetricsSnapshot returns the latest per-mechanism metrics Run has
// recorded, independent of the results file a caller may also be writing.
func (d *Driver) MetricsSnapshot() map[string]any {
	return d.metrics.GetSnapshot()
}

// DebugState evaluates every registered debug probe (worker pool size,
// host CPU count) for runtime introspection.
func (d *Driver) DebugState() map[string]any {
	return d.debug.DumpState()
}

// Run executes one mechanism end to end: builds a unique rendezvous,
// starts the server and client sides, waits on the readiness barrier,
// runs the configured measurement loop, and returns a populated
// results.BenchmarkResults. The server and client roles run as two
// goroutines within this process, exchanging real IPC traffic over the
// mechanism under test — the cross-process spawning coordinator spec.md
// §1 places out of core scope is a CLI/orchestration concern layered
// above this method, not part of the driver state machine itself.
func (d *Driver) Run(ctx context.Context, cfg Config) (*results.BenchmarkResults, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	names := NewRunNames(cfg.PortBase)
	tcfg, sizing := BuildTransportConfig(cfg, names)
	if sizing.Warning != "" {
		d.log.Warn("adaptive sizing", zap.String("mechanism", cfg.Mechanism.String()), zap.String("reason", sizing.Warning))
	}
	if cfg.Mechanism == api.MechanismSharedMemory && cfg.Concurrency > 1 {
		d.log.Warn("concurrency pinned to 1", zap.String("mechanism", cfg.Mechanism.String()), zap.Int("requested_concurrency", cfg.Concurrency))
		cfg.Concurrency = 1
	}

	server, err := transport.New(cfg.Mechanism)
	if err != nil {
		return nil, err
	}
	client, err := transport.New(cfg.Mechanism)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()

	if err := d.pool.Submit(ctx, func(ctx context.Context) error {
		return server.StartServer(ctx, tcfg)
	}); err != nil {
		return nil, fmt.Errorf("driver: start server for %s: %w", cfg.Mechanism, api.NewError(api.KindTransportSetup, "start_server", err))
	}
	d.log.Debug("server started", zap.String("mechanism", cfg.Mechanism.String()))

	if err := d.pool.Submit(ctx, func(ctx context.Context) error {
		return client.StartClient(ctx, tcfg)
	}); err != nil {
		_ = server.Close()
		return nil, fmt.Errorf("driver: start client for %s: %w", cfg.Mechanism, api.NewError(api.KindTransportSetup, "start_client", err))
	}
	d.log.Debug("client started", zap.String("mechanism", cfg.Mechanism.String()))

	var result loopResult
	if cfg.RoundTrip {
		result = runRoundTrip(ctx, client, server, cfg)
	} else {
		result = runOneWay(ctx, client, server, cfg)
	}

	// client closes first; the server observes end-of-stream and closes.
	closeErr := client.Close()
	if err := server.Close(); err != nil && closeErr == nil {
		closeErr = err
	}

	duration := time.Since(startedAt)

	benchResult := buildResults(cfg, result, duration, closeErr)
	if result.Err != nil {
		d.log.Error("measurement loop exited early", zap.String("mechanism", cfg.Mechanism.String()), zap.Error(result.Err))
	}

	d.recordMetrics(cfg.Mechanism, benchResult)
	return benchResult, nil
}

// recordMetrics publishes the just-finished mechanism's headline numbers
// into the live metrics registry, so a caller can poll progress across a
// multi-mechanism RunAll without waiting for the results file.
func (d *Driver) recordMetrics(mechanism api.Mechanism, res *results.BenchmarkResults) {
	prefix := "mechanism." + mechanism.String() + "."
	d.metrics.Set(prefix+"messages_per_second", res.Summary.PeakMessagesPerS)
	d.metrics.Set(prefix+"bytes_per_second", res.Summary.PeakBytesPerS)
	d.metrics.Set(prefix+"p99_ns", res.Summary.P99Ns)
	d.metrics.Set(prefix+"total_messages", res.Summary.TotalMessages)
	if res.Safety != nil {
		d.metrics.Set(prefix+"asil_level", string(res.Safety.Level))
	}
}

func buildResults(cfg Config, loop loopResult, duration time.Duration, closeErr error) *results.BenchmarkResults {
	now := time.Now()
	hostname, _ := os.Hostname()

	var percentiles []float64
	if len(cfg.Percentiles) > 0 {
		percentiles = cfg.Percentiles
	} else {
		percentiles = []float64{50, 90, 95, 99, 99.9}
	}

	var latencyMetrics *histogram.LatencyMetrics
	if loop.Latency != nil {
		snap := loop.Latency.Snapshot(percentiles)
		latencyMetrics = &snap
	}
	perf := results.NewPerformanceMetrics(latencyMetrics, loop.Throughput, now)

	res := &results.BenchmarkResults{
		Mechanism: cfg.Mechanism.String(),
		Config: results.TestConfig{
			Mechanism:        cfg.Mechanism.String(),
			MessageSize:      cfg.MessageSize,
			Iterations:       cfg.Iterations,
			DurationSeconds:  cfg.DurationSeconds,
			WarmupIterations: cfg.WarmupIterations,
			Concurrency:      cfg.Concurrency,
			BufferSize:       cfg.BufferSizeHint,
			Percentiles:      percentiles,
		},
		TestDurationNs: duration.Nanoseconds(),
		System:         results.CollectSystemInfo(hostname, now),
		TimestampUnix:  now.Unix(),
	}
	if cfg.RoundTrip {
		res.RoundTrip = &perf
	} else {
		res.OneWay = &perf
	}
	res.Summary = results.Summarize(res.OneWay, res.RoundTrip)

	if latencyMetrics != nil {
		budgetNs := int64(perOpTimeout.Nanoseconds())
		profile := results.EvaluateSafety(*latencyMetrics, budgetNs, 0)
		res.Safety = &profile
	}

	if loop.Err != nil {
		res.Errors = append(res.Errors, loop.Err.Error())
	}
	if closeErr != nil {
		res.Errors = append(res.Errors, closeErr.Error())
	}
	return res
}
