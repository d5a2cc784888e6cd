package api

import "context"

// MaxStreamMessageSize bounds a single framed record on the stream
// transports (UDS, TCP). SHM and PMQ declare their own, smaller maxima
// derived from their configured capacity.
const MaxStreamMessageSize = 16 * 1024 * 1024

// Mechanism tags one of the four IPC mechanisms this harness drives.
type Mechanism int

const (
	MechanismUnixSocket Mechanism = iota
	MechanismTCP
	MechanismPOSIXQueue
	MechanismSharedMemory
)

func (m Mechanism) String() string {
	switch m {
	case MechanismUnixSocket:
		return "uds"
	case MechanismTCP:
		return "tcp"
	case MechanismPOSIXQueue:
		return "pmq"
	case MechanismSharedMemory:
		return "shm"
	default:
		return "unknown"
	}
}

// ParseMechanism maps a CLI/config token onto a Mechanism.
func ParseMechanism(s string) (Mechanism, bool) {
	switch s {
	case "uds", "unix", "unix_domain_socket":
		return MechanismUnixSocket, true
	case "tcp":
		return MechanismTCP, true
	case "pmq", "posix_message_queue":
		return MechanismPOSIXQueue, true
	case "shm", "shared_memory":
		return MechanismSharedMemory, true
	default:
		return 0, false
	}
}

// TransportState is the lifecycle state machine every Transport implements:
//
//	Uninitialized -> start_server/start_client -> Initializing
//	Initializing  -> success -> Connected
//	Initializing  -> failure -> Error (terminal; close -> Disconnected)
//	Connected     -> close   -> Disconnected (terminal)
type TransportState int

const (
	StateUninitialized TransportState = iota
	StateInitializing
	StateConnected
	StateError
	StateDisconnected
)

func (s TransportState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// TransportConfig enumerates everything a concrete transport needs to bind
// or connect. It is constructed once per benchmark run with a unique
// suffix and is treated as immutable once handed to a transport.
type TransportConfig struct {
	// BufferSize is the stream socket buffer size / SHM ring capacity hint,
	// in bytes.
	BufferSize int
	// Host and Port address the TCP loopback endpoint.
	Host string
	Port int
	// SocketPath is the filesystem rendezvous for the UDS transport.
	SocketPath string
	// SharedMemoryName is the base name of the SHM segment.
	SharedMemoryName string
	// QueueName is the base name of the POSIX message queue.
	QueueName string
	// QueueDepth is the PMQ's maximum queue depth (max_msgs).
	QueueDepth int
	// MaxConnections bounds concurrent connections for multi-client
	// variants.
	MaxConnections int
}

// Transport is the uniform contract implemented by every IPC mechanism:
// start as a server or client, exchange Messages, and close. Capability
// flags are queried to let the driver branch on bidirectional support and
// the maximum payload size this instance will accept.
type Transport interface {
	// StartServer binds/creates the rendezvous and transitions to
	// Connected (or Error on failure).
	StartServer(ctx context.Context, cfg *TransportConfig) error
	// StartClient connects to a rendezvous created by a prior StartServer.
	StartClient(ctx context.Context, cfg *TransportConfig) error
	// Send transmits msg. Only valid in the Connected state.
	Send(ctx context.Context, msg Message) error
	// Receive blocks until a Message is available or ctx is done. Only
	// valid in the Connected state.
	Receive(ctx context.Context) (Message, error)
	// Close releases all resources. Idempotent.
	Close() error

	// State reports the current lifecycle state.
	State() TransportState
	// Name is a human-readable mechanism name for logs and results.
	Name() string
	// SupportsBidirectional reports whether Send/Receive may both be
	// called on the same instance (all four mechanisms here do).
	SupportsBidirectional() bool
	// MaxMessageSize is the largest payload this instance will accept,
	// which may depend on configuration (e.g. SHM ring capacity).
	MaxMessageSize() int
}
