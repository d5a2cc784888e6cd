package shm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/internal/codec"
	"github.com/redhat-performance/rusty-comms-sub000/internal/shmring"
)

const (
	readinessPollInterval = 10 * time.Millisecond
	readinessTimeout      = 30 * time.Second

	clientOpenMaxAttempts = 30
	clientOpenRetryDelay  = 100 * time.Millisecond
)

// Transport implements api.Transport over a shared memory SPSC ring
// buffer. The server maps the segment eagerly in StartServer; the client
// defers the open to the first Send/Receive call, retrying while the
// segment is not yet visible.
type Transport struct {
	mu         sync.Mutex
	state      api.TransportState
	segment    []byte
	ring       *shmring.Ring
	name       string
	capacity   int
	role       shmring.Role
	isServer   bool
}

// New constructs an idle SHM transport.
func New() *Transport {
	return &Transport{state: api.StateUninitialized}
}

func (t *Transport) Name() string               { return "shared_memory" }
func (t *Transport) SupportsBidirectional() bool { return true }

func (t *Transport) MaxMessageSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capacity == 0 {
		return 0
	}
	return t.capacity - 5
}

func (t *Transport) State() api.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StartServer creates and maps the segment eagerly, initializes the ring
// header, and marks server_ready.
func (t *Transport) StartServer(ctx context.Context, cfg *api.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = api.StateInitializing

	t.name = cfg.SharedMemoryName
	t.capacity = ringCapacity(cfg.BufferSize)
	total := int(shmring.HeaderSize) + t.capacity

	segment, err := shmCreate(t.name, total)
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("shm: create segment: %w", api.NewError(api.KindTransportSetup, "shm_open create", err))
	}

	ring, err := shmring.Attach(segment, uint64(t.capacity), shmring.RoleServer, true)
	if err != nil {
		shmUnmap(segment)
		t.state = api.StateError
		return err
	}

	t.segment = segment
	t.ring = ring
	t.role = shmring.RoleServer
	t.isServer = true
	ring.MarkReady()
	t.state = api.StateConnected
	return nil
}

// StartClient records configuration; the actual mmap open happens lazily on
// the first Send/Receive, matching the spec's deferred-client-open
// semantics.
func (t *Transport) StartClient(ctx context.Context, cfg *api.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = cfg.SharedMemoryName
	t.capacity = ringCapacity(cfg.BufferSize)
	t.role = shmring.RoleClient
	t.isServer = false
	t.state = api.StateConnected
	return nil
}

// ensureOpen performs the deferred client-side mmap open plus the readiness
// handshake, under the caller's lock.
func (t *Transport) ensureOpen(ctx context.Context) error {
	if t.ring != nil {
		return nil
	}
	if t.isServer {
		return api.ErrNotConnected
	}

	total := int(shmring.HeaderSize) + t.capacity
	var segment []byte
	var err error
	for attempt := 0; attempt < clientOpenMaxAttempts; attempt++ {
		segment, err = shmOpen(t.name, total)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("shm: open segment: %w", ctx.Err())
		case <-time.After(clientOpenRetryDelay):
		}
	}
	if err != nil {
		return fmt.Errorf("shm: open segment after %d attempts: %w", clientOpenMaxAttempts,
			api.NewError(api.KindTransportSetup, "shm_open existing", err))
	}

	ring, attachErr := shmring.Attach(segment, uint64(t.capacity), shmring.RoleClient, false)
	if attachErr != nil {
		shmUnmap(segment)
		return attachErr
	}

	if err := ring.WaitForPeer(readinessTimeout); err != nil {
		shmUnmap(segment)
		return err
	}
	ring.MarkReady()

	t.segment = segment
	t.ring = ring
	return nil
}

// Send encodes msg and writes it into the ring, retrying for up to 5s.
func (t *Transport) Send(ctx context.Context, msg api.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != api.StateConnected {
		return api.ErrNotConnected
	}
	if err := t.ensureOpen(ctx); err != nil {
		return err
	}

	encoded, err := codec.Encode(msg)
	if err != nil {
		return err
	}
	if err := t.ring.WriteRecord(encoded); err != nil {
		return fmt.Errorf("shm: send: %w", err)
	}
	return nil
}

// Receive reads and decodes one record from the ring, retrying for up to
// 5s.
func (t *Transport) Receive(ctx context.Context) (api.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != api.StateConnected {
		return api.Message{}, api.ErrNotConnected
	}
	if err := t.ensureOpen(ctx); err != nil {
		return api.Message{}, err
	}

	payload, err := t.ring.ReadRecord()
	if err != nil {
		return api.Message{}, fmt.Errorf("shm: receive: %w", err)
	}
	return codec.Decode(payload)
}

// Close unmaps the segment and, for the creating server, unlinks the
// backing shm object. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == api.StateDisconnected {
		return nil
	}

	var errs []error
	if t.ring != nil {
		t.ring.RequestShutdown()
	}
	if t.segment != nil {
		if err := shmUnmap(t.segment); err != nil {
			errs = append(errs, err)
		}
		t.segment = nil
	}
	if t.isServer && t.name != "" {
		if err := shmUnlink(t.name); err != nil && !isNotExistErr(err) {
			errs = append(errs, err)
		}
	}
	t.state = api.StateDisconnected
	return errors.Join(errs...)
}

const (
	minRingCapacity = 1024
	maxRingCapacity = 2 * 1024 * 1024
)

func ringCapacity(bufferSize int) int {
	if bufferSize < minRingCapacity {
		return minRingCapacity
	}
	if bufferSize > maxRingCapacity {
		return maxRingCapacity
	}
	return bufferSize
}
