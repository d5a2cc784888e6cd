// Package uds implements the api.Transport contract over a Unix domain
// stream socket, framed with the shared length-prefix codec.
package uds

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/internal/bufpool"
	"github.com/redhat-performance/rusty-comms-sub000/internal/codec"
	"github.com/redhat-performance/rusty-comms-sub000/transport"
)

const socketMode = 0o666

// Transport is a Unix domain socket implementation of api.Transport. The
// server side defers accept() until the first Send/Receive call; on a
// recoverable I/O error the cached connection is dropped so the next call
// re-accepts a fresh peer.
type Transport struct {
	mu         sync.Mutex
	state      api.TransportState
	isServer   bool
	ownsSocket bool
	socketPath string
	listener   *net.UnixListener
	conn       *transport.FramedConn
	bufs       *bufpool.Pool
}

// New constructs an idle UDS transport.
func New() *Transport {
	return &Transport{state: api.StateUninitialized, bufs: bufpool.New()}
}

func (t *Transport) Name() string                   { return "unix_domain_socket" }
func (t *Transport) SupportsBidirectional() bool     { return true }
func (t *Transport) MaxMessageSize() int             { return api.MaxStreamMessageSize }
func (t *Transport) State() api.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StartServer binds the listening socket eagerly; it does not accept.
func (t *Transport) StartServer(ctx context.Context, cfg *api.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = api.StateInitializing

	_ = os.Remove(cfg.SocketPath)
	addr, err := net.ResolveUnixAddr("unix", cfg.SocketPath)
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("uds: resolve addr: %w", api.NewError(api.KindTransportSetup, "resolve unix addr", err))
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("uds: listen: %w", api.NewError(api.KindTransportSetup, "bind unix socket", err))
	}
	if err := os.Chmod(cfg.SocketPath, socketMode); err != nil {
		ln.Close()
		t.state = api.StateError
		return fmt.Errorf("uds: chmod socket: %w", api.NewError(api.KindTransportSetup, "chmod unix socket", err))
	}

	t.listener = ln
	t.socketPath = cfg.SocketPath
	t.ownsSocket = true
	t.isServer = true
	t.state = api.StateConnected
	return nil
}

// StartClient connects immediately; UDS has no client-side lazy retry
// (unlike PMQ and SHM, the socket file is expected to already exist).
func (t *Transport) StartClient(ctx context.Context, cfg *api.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = api.StateInitializing

	addr, err := net.ResolveUnixAddr("unix", cfg.SocketPath)
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("uds: resolve addr: %w", api.NewError(api.KindTransportSetup, "resolve unix addr", err))
	}
	var conn net.Conn
	if deadline, ok := ctx.Deadline(); ok {
		conn, err = net.DialTimeout("unix", addr.String(), time.Until(deadline))
	} else {
		conn, err = net.DialUnix("unix", nil, addr)
	}
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("uds: dial: %w", api.NewError(api.KindTransportSetup, "connect unix socket", err))
	}

	t.socketPath = cfg.SocketPath
	t.isServer = false
	t.conn = transport.NewFramedConn(conn, api.MaxStreamMessageSize)
	t.state = api.StateConnected
	return nil
}

// ensureConnected performs the deferred server-side accept, under the
// caller's lock.
func (t *Transport) ensureConnected(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	if !t.isServer {
		return api.ErrNotConnected
	}

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan acceptResult, 1)
	go func() {
		conn, err := t.listener.Accept()
		resultCh <- acceptResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("uds: accept: %w", ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return fmt.Errorf("uds: accept: %w", api.NewError(api.KindTransportIO, "accept connection", res.err))
		}
		t.conn = transport.NewFramedConn(res.conn, api.MaxStreamMessageSize)
		return nil
	}
}

// Send encodes and writes msg as one framed record.
func (t *Transport) Send(ctx context.Context, msg api.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != api.StateConnected {
		return api.ErrNotConnected
	}
	if err := t.ensureConnected(ctx); err != nil {
		return err
	}

	applyDeadline(t.conn.RawConn(), ctx)
	buf := t.bufs.Get(codec.HeaderSize + len(msg.Payload))
	encoded, err := codec.EncodeInto(buf, msg)
	if err != nil {
		t.bufs.Put(buf)
		return err
	}
	writeErr := t.conn.WriteFrame(encoded)
	t.bufs.Put(encoded)
	if writeErr != nil {
		if invalidatesConn(writeErr) {
			t.conn = nil
		}
		return fmt.Errorf("uds: send: %w", api.NewError(api.KindTransportIO, "write frame", writeErr))
	}
	return nil
}

// Receive reads and decodes one framed record.
func (t *Transport) Receive(ctx context.Context) (api.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != api.StateConnected {
		return api.Message{}, api.ErrNotConnected
	}
	if err := t.ensureConnected(ctx); err != nil {
		return api.Message{}, err
	}

	applyDeadline(t.conn.RawConn(), ctx)
	frame, err := t.conn.ReadFrame()
	if err != nil {
		if invalidatesConn(err) {
			t.conn = nil
		}
		return api.Message{}, fmt.Errorf("uds: receive: %w", api.NewError(api.KindTransportIO, "read frame", err))
	}
	return codec.Decode(frame)
}

// Close shuts down the connection (and, for the owning server, the
// listener and the socket file). Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == api.StateDisconnected {
		return nil
	}

	var errs []error
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		t.conn = nil
	}
	if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.ownsSocket && t.socketPath != "" {
		if err := os.Remove(t.socketPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	t.state = api.StateDisconnected
	return errors.Join(errs...)
}

func applyDeadline(conn net.Conn, ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Time{})
	}
}

// invalidatesConn reports whether err invalidates the cached connection. A
// per-operation deadline expiring is not itself a broken connection —
// only a non-timeout net.Error (e.g. peer reset) or a closed connection
// forces the next call to re-accept. io.EOF from a peer that closed
// cleanly is not counted and leaves the connection cached.
func invalidatesConn(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return errors.Is(err, os.ErrClosed)
}
