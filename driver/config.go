// Package driver implements the benchmark driver state machine (spec.md
// §4.9): unique-run naming, adaptive sizing, the server-readiness barrier,
// and the one-way/round-trip measurement loops.
package driver

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

const (
	maxMessageSize = 16 * 1024 * 1024
	minBufferSize  = 1024
	maxBufferSize  = 1 * 1024 * 1024 * 1024

	pmqQueueDepth        = 10
	pmqIterationWarnAt   = 10000
	shmMinBuffer         = 2 * 1024 * 1024 / 4 // not referenced: resolveShmSizing applies no lower clamp
	shmMaxAdaptiveBuffer = 2 * 1024 * 1024

	tcpPortBase = 20000
)

// Config carries everything the driver needs to run one mechanism, per
// spec.md §4.9's inputs.
type Config struct {
	Mechanism        api.Mechanism
	MessageSize      int
	WarmupIterations int
	Iterations       int     // ignored when DurationSeconds > 0
	DurationSeconds  float64 // wins over Iterations when both are set
	Percentiles      []float64
	BufferSizeHint   int
	Concurrency      int
	Host             string
	PortBase         int
	RoundTrip        bool
}

// Validate applies spec.md §4.9's input validation.
func (c Config) Validate() error {
	if c.MessageSize <= 0 || c.MessageSize > maxMessageSize {
		return api.NewError(api.KindConfig, "message_size must be > 0 and <= 16MiB", nil).WithContext("message_size", c.MessageSize)
	}
	if c.BufferSizeHint < minBufferSize || c.BufferSizeHint > maxBufferSize {
		return api.NewError(api.KindConfig, "buffer_size must be >= 1KiB and <= 1GiB", nil).WithContext("buffer_size", c.BufferSizeHint)
	}
	if c.Concurrency < 1 || c.Concurrency > 1024 {
		return api.NewError(api.KindConfig, "concurrency must be in [1, 1024]", nil).WithContext("concurrency", c.Concurrency)
	}
	if c.Iterations <= 0 && c.DurationSeconds <= 0 {
		return api.NewError(api.KindConfig, "either iterations or duration_seconds must be set", nil)
	}
	return nil
}

// UsesDuration reports whether the run is bounded by wall-clock duration
// rather than an iteration count (duration wins when both are set).
func (c Config) UsesDuration() bool {
	return c.DurationSeconds > 0
}

// RunNames holds the unique per-run rendezvous identifiers derived from a
// single 128-bit UUID, per spec.md §4.9/§6.
type RunNames struct {
	ID         uuid.UUID
	SocketPath string
	ShmName    string
	QueueName  string
	Port       int
}

// NewRunNames draws a UUID and derives every rendezvous name a run needs.
func NewRunNames(portBase int) RunNames {
	id := uuid.New()
	idMod1000 := int(binary.BigEndian.Uint64(id[8:16]) % 1000)
	if portBase <= 0 {
		portBase = tcpPortBase
	}
	return RunNames{
		ID:         id,
		SocketPath: filepath.Join(os.TempDir(), fmt.Sprintf("ipc_benchmark_%s.sock", id)),
		ShmName:    fmt.Sprintf("ipc_benchmark_%s", id),
		QueueName:  fmt.Sprintf("ipc_benchmark_pmq_%s", id),
		Port:       portBase + idMod1000,
	}
}

// sizingOutcome records how the driver adjusted buffer/queue sizing and
// why, so it can be logged at Warn per spec.md §4.9.
type sizingOutcome struct {
	BufferSize int
	QueueDepth int
	Warning    string
}

// resolveSizing applies spec.md §4.9's adaptive sizing rules for SHM and
// PMQ. Other mechanisms pass the user's hint through unchanged.
func resolveSizing(mechanism api.Mechanism, messageSize, iterations, userBufferHint int) sizingOutcome {
	switch mechanism {
	case api.MechanismSharedMemory:
		return resolveShmSizing(messageSize, iterations, userBufferHint)
	case api.MechanismPOSIXQueue:
		out := sizingOutcome{BufferSize: userBufferHint, QueueDepth: pmqQueueDepth}
		if iterations > pmqIterationWarnAt {
			out.Warning = fmt.Sprintf("pmq queue_depth pinned to %d while iterations=%d exceeds %d; expect backoff-bound throughput", pmqQueueDepth, iterations, pmqIterationWarnAt)
		}
		return out
	default:
		return sizingOutcome{BufferSize: userBufferHint}
	}
}

func resolveShmSizing(messageSize, iterations, userBufferHint int) sizingOutcome {
	if iterations < 8000 {
		return sizingOutcome{BufferSize: userBufferHint}
	}
	k := 150
	switch {
	case iterations >= 50000:
		k = 300
	case iterations >= 20000:
		k = 200
	}
	computed := messageSize*k + 2*1024

	size := computed
	if userBufferHint > size {
		size = userBufferHint
	}
	if size > shmMaxAdaptiveBuffer {
		size = shmMaxAdaptiveBuffer
	}
	warning := ""
	if size != userBufferHint {
		warning = fmt.Sprintf("shm buffer size adapted to %d bytes for %d iterations (K=%d)", size, iterations, k)
	}
	return sizingOutcome{BufferSize: size, Warning: warning}
}

// BuildTransportConfig derives the api.TransportConfig for one mechanism
// from a Config, a set of RunNames, and the resolved sizing.
func BuildTransportConfig(cfg Config, names RunNames) (*api.TransportConfig, sizingOutcome) {
	sizing := resolveSizing(cfg.Mechanism, cfg.MessageSize, effectiveIterations(cfg), cfg.BufferSizeHint)
	tc := &api.TransportConfig{
		BufferSize:       sizing.BufferSize,
		Host:             cfg.Host,
		Port:             names.Port,
		SocketPath:       names.SocketPath,
		SharedMemoryName: names.ShmName,
		QueueName:        names.QueueName,
		QueueDepth:       sizing.QueueDepth,
		MaxConnections:   cfg.Concurrency,
	}
	return tc, sizing
}

// effectiveIterations resolves the iteration count adaptive sizing keys
// off. Duration-bounded runs don't know their final message count ahead of
// time, so they skip adaptive scaling entirely (an open question spec.md
// §4.9 doesn't address; see DESIGN.md).
func effectiveIterations(cfg Config) int {
	if cfg.UsesDuration() {
		return 0
	}
	return cfg.Iterations
}
