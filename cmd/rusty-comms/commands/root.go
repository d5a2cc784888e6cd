// Package commands wires the rusty-comms cobra command tree: the flags
// enumerated in spec.md §6, a config.Load overlay, and the driver.RunAll
// orchestration across the requested mechanisms.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/config"
	"github.com/redhat-performance/rusty-comms-sub000/driver"
	"github.com/redhat-performance/rusty-comms-sub000/internal/obslog"
	"github.com/redhat-performance/rusty-comms-sub000/results"
)

// flags holds the values cobra parses; passed through to config.Load as
// the highest-precedence overlay layer.
type flags struct {
	configPath       string
	mechanisms       []string
	messageSize      int
	iterations       int
	durationSeconds  float64
	concurrency      int
	warmupIterations int
	percentiles      []float64
	bufferSize       int
	host             string
	port             int
	roundTrip        bool
	continueOnError  bool
	outputFile       string
	streamingFile    string
	logLevel         string
}

var f flags

var rootCmd = &cobra.Command{
	Use:   "rusty-comms",
	Short: "Benchmark IPC mechanisms: Unix domain sockets, TCP loopback, POSIX queues, shared memory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBenchmark(cmd.Context())
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	fl := rootCmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "optional YAML config file")
	fl.StringSliceVar(&f.mechanisms, "mechanisms", nil, "mechanisms to run: uds,tcp,pmq,shm")
	fl.IntVar(&f.messageSize, "message-size", 0, "payload size in bytes")
	fl.IntVar(&f.iterations, "iterations", 0, "number of messages per mechanism")
	fl.Float64Var(&f.durationSeconds, "duration", 0, "wall-clock run length in seconds (overrides iterations)")
	fl.IntVar(&f.concurrency, "concurrency", 0, "worker concurrency per mechanism")
	fl.IntVar(&f.warmupIterations, "warmup", 0, "warmup iterations before measurement begins")
	fl.Float64SliceVar(&f.percentiles, "percentiles", nil, "latency percentiles to report, e.g. 50,90,99")
	fl.IntVar(&f.bufferSize, "buffer-size", 0, "transport buffer size hint in bytes")
	fl.StringVar(&f.host, "host", "", "TCP loopback host")
	fl.IntVar(&f.port, "port", 0, "TCP loopback base port")
	fl.BoolVar(&f.roundTrip, "round-trip", false, "measure round-trip request/response latency instead of one-way")
	fl.BoolVar(&f.continueOnError, "continue-on-error", false, "run every requested mechanism even if one fails")
	fl.StringVar(&f.outputFile, "output-file", "", "write the full results document to this path")
	fl.StringVar(&f.streamingFile, "streaming-output", "", "write results incrementally to this path as each mechanism completes")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// flagOverrides converts only the flags the user actually set into the
// dotted-key map config.Load expects, so unset flags fall through to the
// env/file/defaults layers instead of clobbering them with zero values.
func flagOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	set := func(name, key string, val any) {
		if cmd.Flags().Changed(name) {
			overrides[key] = val
		}
	}
	set("mechanisms", "run.mechanisms", f.mechanisms)
	set("message-size", "run.message_size", f.messageSize)
	set("iterations", "run.iterations", f.iterations)
	set("duration", "run.duration_seconds", f.durationSeconds)
	set("concurrency", "run.concurrency", f.concurrency)
	set("warmup", "run.warmup_iterations", f.warmupIterations)
	set("percentiles", "run.percentiles", f.percentiles)
	set("buffer-size", "run.buffer_size", f.bufferSize)
	set("host", "run.host", f.host)
	set("port", "run.port", f.port)
	set("round-trip", "run.round_trip", f.roundTrip)
	set("continue-on-error", "run.continue_on_error", f.continueOnError)
	set("output-file", "output.file", f.outputFile)
	set("streaming-output", "output.streaming", f.streamingFile)
	set("log-level", "log.level", f.logLevel)
	return overrides
}

func runBenchmark(ctx context.Context) error {
	cfg, err := config.Load(f.configPath, flagOverrides(rootCmd))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := obslog.New(cfg.Log.Level == "debug", cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	configs, err := buildDriverConfigs(cfg)
	if err != nil {
		return fmt.Errorf("build mechanism configs: %w", err)
	}

	d := driver.New(log, cfg.Run.Concurrency)
	defer d.Close()

	runResults, runErr := driver.RunAll(ctx, d, configs, cfg.Run.ContinueOnError)
	log.Debug("driver observability snapshot", zap.Any("metrics", d.MetricsSnapshot()), zap.Any("debug_probes", d.DebugState()))

	if err := writeResults(runResults, cfg); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if cfg.Run.ContinueOnError {
		return nil
	}
	return runErr
}

func buildDriverConfigs(cfg *config.Config) ([]driver.Config, error) {
	configs := make([]driver.Config, 0, len(cfg.Run.Mechanisms))
	for _, token := range cfg.Run.Mechanisms {
		mechanism, ok := api.ParseMechanism(token)
		if !ok {
			return nil, fmt.Errorf("unrecognized mechanism %q", token)
		}
		configs = append(configs, driver.Config{
			Mechanism:        mechanism,
			MessageSize:      cfg.Run.MessageSize,
			WarmupIterations: cfg.Run.WarmupIterations,
			Iterations:       cfg.Run.Iterations,
			DurationSeconds:  cfg.Run.DurationSeconds,
			Percentiles:      cfg.Run.Percentiles,
			BufferSizeHint:   cfg.Run.BufferSize,
			Concurrency:      cfg.Run.Concurrency,
			Host:             cfg.Run.Host,
			PortBase:         cfg.Run.Port,
			RoundTrip:        cfg.Run.RoundTrip,
		})
	}
	return configs, nil
}

func writeResults(all []results.BenchmarkResults, cfg *config.Config) error {
	if cfg.Output.Streaming != "" {
		hostname, _ := os.Hostname()
		now := time.Now()
		meta := results.Metadata{
			Version:     results.SchemaVersion,
			TimestampNs: now.UnixNano(),
			TotalTests:  len(all),
			System:      results.CollectSystemInfo(hostname, now),
		}
		sw, err := results.NewStreamWriter(cfg.Output.Streaming, meta)
		if err != nil {
			return err
		}
		for _, r := range all {
			if err := sw.Append(r); err != nil {
				sw.Close() //nolint:errcheck
				return err
			}
		}
		if err := sw.Close(); err != nil {
			return err
		}
	}

	if cfg.Output.File != "" {
		hostname, _ := os.Hostname()
		now := time.Now()
		doc := results.Document{
			Metadata: results.Metadata{
				Version:     results.SchemaVersion,
				TimestampNs: now.UnixNano(),
				TotalTests:  len(all),
				System:      results.CollectSystemInfo(hostname, now),
			},
			Results: all,
		}
		if err := results.NewWriter(cfg.Output.File).WriteAll(doc); err != nil {
			return err
		}
	}
	return nil
}
