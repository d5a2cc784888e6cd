// Package transport holds the length-prefix framing shared by the stream
// transports (UDS, TCP): a 4-byte little-endian size header followed by the
// codec-encoded record, per the external wire framing contract.
package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

// FramedConn wraps a net.Conn with buffered length-prefixed record framing.
// Both UDS and TCP transports embed one of these instead of talking to
// net.Conn directly.
type FramedConn struct {
	conn   net.Conn
	reader *bufio.Reader
	maxLen int
}

// NewFramedConn wraps conn, rejecting any frame whose declared length
// exceeds maxLen.
func NewFramedConn(conn net.Conn, maxLen int) *FramedConn {
	return &FramedConn{conn: conn, reader: bufio.NewReader(conn), maxLen: maxLen}
}

// WriteFrame writes a 4-byte little-endian length prefix followed by
// payload as a single record.
func (f *FramedConn) WriteFrame(payload []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := f.conn.Write(header[:]); err != nil {
		return fmt.Errorf("transport: write frame header: %w", err)
	}
	if _, err := f.conn.Write(payload); err != nil {
		return fmt.Errorf("transport: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed record, validating the declared
// length against maxLen before allocating a buffer for it.
func (f *FramedConn) ReadFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(f.reader, header[:]); err != nil {
		return nil, fmt.Errorf("transport: read frame header: %w", err)
	}
	length := int(binary.LittleEndian.Uint32(header[:]))
	if length <= 0 {
		return nil, api.NewError(api.KindCorruption, "non-positive frame length", nil)
	}
	if length > f.maxLen {
		return nil, api.NewError(api.KindTransportIO, "frame exceeds max message size", nil).WithContext("length", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(f.reader, payload); err != nil {
		return nil, fmt.Errorf("transport: read frame payload: %w", err)
	}
	return payload, nil
}

// Close closes the underlying connection.
func (f *FramedConn) Close() error { return f.conn.Close() }

// RawConn exposes the wrapped net.Conn for socket-option tuning
// (TCP_NODELAY, buffer sizes) performed by the concrete transports.
func (f *FramedConn) RawConn() net.Conn { return f.conn }
