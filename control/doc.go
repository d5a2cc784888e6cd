// Package control provides the runtime observability layer the benchmark
// driver exposes alongside its JSON results file: a live metrics registry
// updated as each mechanism finishes, and a debug probe registry for
// on-demand runtime introspection (worker pool size, host CPU count).
//
// Neither feeds back into the measurement loop itself — they are read-only
// views cmd/rusty-comms dumps once a run completes (see
// commands.runBenchmark's debug-state log line).
package control
