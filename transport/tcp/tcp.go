// Package tcp implements the api.Transport contract over a TCP loopback
// connection, with the same framing and lazy-accept semantics as the UDS
// transport.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/internal/bufpool"
	"github.com/redhat-performance/rusty-comms-sub000/internal/codec"
	"github.com/redhat-performance/rusty-comms-sub000/transport"
)

// Transport is a loopback TCP implementation of api.Transport.
type Transport struct {
	mu       sync.Mutex
	state    api.TransportState
	isServer bool
	bufSize  int
	listener *net.TCPListener
	conn     *transport.FramedConn
	bufs     *bufpool.Pool
}

// New constructs an idle TCP transport.
func New() *Transport {
	return &Transport{state: api.StateUninitialized, bufs: bufpool.New()}
}

func (t *Transport) Name() string               { return "tcp" }
func (t *Transport) SupportsBidirectional() bool { return true }
func (t *Transport) MaxMessageSize() int         { return api.MaxStreamMessageSize }

func (t *Transport) State() api.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StartServer binds the loopback listener eagerly; it does not accept.
func (t *Transport) StartServer(ctx context.Context, cfg *api.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = api.StateInitializing

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("tcp: resolve addr: %w", api.NewError(api.KindTransportSetup, "resolve tcp addr", err))
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("tcp: listen: %w", api.NewError(api.KindTransportSetup, "bind tcp listener", err))
	}

	t.listener = ln
	t.bufSize = cfg.BufferSize
	t.isServer = true
	t.state = api.StateConnected
	return nil
}

// StartClient connects to the configured loopback endpoint.
func (t *Transport) StartClient(ctx context.Context, cfg *api.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = api.StateInitializing

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.state = api.StateError
		return fmt.Errorf("tcp: dial: %w", api.NewError(api.KindTransportSetup, "connect tcp socket", err))
	}

	t.bufSize = cfg.BufferSize
	t.isServer = false
	if err := t.configureSocket(conn); err != nil {
		conn.Close()
		t.state = api.StateError
		return err
	}
	t.conn = transport.NewFramedConn(conn, api.MaxStreamMessageSize)
	t.state = api.StateConnected
	return nil
}

func (t *Transport) configureSocket(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		return fmt.Errorf("tcp: set nodelay: %w", api.NewError(api.KindTransportSetup, "set TCP_NODELAY", err))
	}
	if t.bufSize > 0 {
		_ = tcpConn.SetReadBuffer(t.bufSize)
		_ = tcpConn.SetWriteBuffer(t.bufSize)
	}
	return nil
}

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
		return fmt.Errorf("tcp: accept: %w", ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return fmt.Errorf("tcp: accept: %w", api.NewError(api.KindTransportIO, "accept connection", res.err))
		}
		if err := t.configureSocket(res.conn); err != nil {
			res.conn.Close()
			return err
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
		return fmt.Errorf("tcp: send: %w", api.NewError(api.KindTransportIO, "write frame", writeErr))
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
		return api.Message{}, fmt.Errorf("tcp: receive: %w", api.NewError(api.KindTransportIO, "read frame", err))
	}
	return codec.Decode(frame)
}

// Close shuts down the connection and, for the server, the listener.
// Idempotent.
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
	return errors.Is(err, net.ErrClosed)
}
