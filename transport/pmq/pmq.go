package pmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/internal/codec"
	"github.com/redhat-performance/rusty-comms-sub000/internal/concurrency"
)

const (
	minMsgSize = 1024

	clientOpenMaxAttempts = 10
	clientOpenBaseDelay   = 10 * time.Millisecond
	clientOpenMaxDelay    = time.Second

	ioMaxAttempts = 100
	ioBaseDelay   = time.Millisecond
	ioMaxDelay    = 10 * time.Millisecond
)

// Transport implements api.Transport over a POSIX message queue. The
// descriptor is owned exclusively by the Transport and is never handed to
// another goroutine (mqdT is just an int on Linux), so there is never a second
// owner that might close it independently — "close exactly once" holds by
// construction rather than by a forgotten/disavowed handle.
type Transport struct {
	mu         sync.Mutex
	state      api.TransportState
	queueName  string
	fd         mqdT
	maxMsgSize int
	isServer   bool
}

// New constructs an idle PMQ transport.
func New() *Transport {
	return &Transport{state: api.StateUninitialized, fd: -1}
}

func (t *Transport) Name() string               { return "posix_message_queue" }
func (t *Transport) SupportsBidirectional() bool { return true }

func (t *Transport) MaxMessageSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxMsgSize
}

func (t *Transport) State() api.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StartServer creates the queue with create+read-write+nonblocking and the
// configured (max_msgs, max_msg_size) attributes.
func (t *Transport) StartServer(ctx context.Context, cfg *api.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = api.StateInitializing

	t.queueName = queueName(cfg.QueueName)
	t.maxMsgSize = maxMsgSize(cfg.BufferSize)
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 10
	}

	fd, err := mqOpenCreate(t.queueName, int64(depth), int64(t.maxMsgSize))
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("pmq: create queue: %w", api.NewError(api.KindTransportSetup, "mq_open create", err))
	}

	t.fd = fd
	t.isServer = true
	t.state = api.StateConnected
	return nil
}

// StartClient opens the existing queue, retrying up to 10 times with
// exponential backoff (10ms base, capped at 1s) while the server has not
// yet created it.
func (t *Transport) StartClient(ctx context.Context, cfg *api.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = api.StateInitializing

	t.queueName = queueName(cfg.QueueName)
	t.maxMsgSize = maxMsgSize(cfg.BufferSize)

	backoff := concurrency.NewBackoff(clientOpenBaseDelay, clientOpenMaxDelay)
	var lastErr error
	for attempt := 0; attempt < clientOpenMaxAttempts; attempt++ {
		fd, err := mqOpenExisting(t.queueName)
		if err == nil {
			t.fd = fd
			t.isServer = false
			t.state = api.StateConnected
			return nil
		}
		lastErr = err
		if !errors.Is(err, unix.ENOENT) {
			break
		}
		select {
		case <-ctx.Done():
			t.state = api.StateError
			return fmt.Errorf("pmq: open queue: %w", ctx.Err())
		case <-time.After(backoff.Next()):
		}
	}

	t.state = api.StateError
	return fmt.Errorf("pmq: open queue after %d attempts: %w", clientOpenMaxAttempts,
		api.NewError(api.KindTransportSetup, "mq_open existing", lastErr))
}

// Send encodes msg and enqueues it with priority 0, retrying on EAGAIN with
// exponential backoff (1ms doubling to 10ms) up to 100 attempts before
// failing with Busy.
func (t *Transport) Send(ctx context.Context, msg api.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != api.StateConnected {
		return api.ErrNotConnected
	}

	encoded, err := codec.Encode(msg)
	if err != nil {
		return err
	}

	backoff := concurrency.NewBackoff(ioBaseDelay, ioMaxDelay)
	for attempt := 0; attempt < ioMaxAttempts; attempt++ {
		err := mqTrySend(t.fd, encoded)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EAGAIN) {
			return fmt.Errorf("pmq: send: %w", api.NewError(api.KindTransportIO, "mq_timedsend", err))
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("pmq: send: %w", ctx.Err())
		case <-time.After(backoff.Next()):
		}
	}
	return fmt.Errorf("pmq: send exhausted %d attempts: %w", ioMaxAttempts, api.ErrBusy)
}

// Receive dequeues one message, retrying on EAGAIN under the same backoff
// policy as Send. The received priority is discarded.
func (t *Transport) Receive(ctx context.Context) (api.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != api.StateConnected {
		return api.Message{}, api.ErrNotConnected
	}

	backoff := concurrency.NewBackoff(ioBaseDelay, ioMaxDelay)
	for attempt := 0; attempt < ioMaxAttempts; attempt++ {
		payload, err := mqTryReceive(t.fd, t.maxMsgSize)
		if err == nil {
			return codec.Decode(payload)
		}
		if !errors.Is(err, unix.EAGAIN) {
			return api.Message{}, fmt.Errorf("pmq: receive: %w", api.NewError(api.KindTransportIO, "mq_timedreceive", err))
		}
		select {
		case <-ctx.Done():
			return api.Message{}, fmt.Errorf("pmq: receive: %w", ctx.Err())
		case <-time.After(backoff.Next()):
		}
	}
	return api.Message{}, fmt.Errorf("pmq: receive exhausted %d attempts: %w", ioMaxAttempts, api.ErrBusy)
}

// Close closes the descriptor and, for the creating server, unlinks the
// queue. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == api.StateDisconnected {
		return nil
	}

	var errs []error
	if t.fd >= 0 {
		if err := mqClose(t.fd); err != nil {
			errs = append(errs, err)
		}
		t.fd = -1
	}
	if t.isServer && t.queueName != "" {
		if err := mqUnlink(t.queueName); err != nil && !errors.Is(err, unix.ENOENT) {
			errs = append(errs, err)
		}
	}
	t.state = api.StateDisconnected
	return errors.Join(errs...)
}

func queueName(base string) string {
	if len(base) > 0 && base[0] == '/' {
		return base
	}
	return "/" + base
}

func maxMsgSize(bufferSize int) int {
	if bufferSize > minMsgSize {
		return bufferSize
	}
	return minMsgSize
}
