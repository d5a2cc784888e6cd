// Package codec implements the wire encoding for api.Message records.
//
// The encoded form is a fixed 17-byte header (id, timestamp, type tag)
// followed by the raw payload bytes. It is self-delimiting only once framed
// with the 4-byte little-endian length prefix every stream and SHM
// transport applies around it (see the transport packages); the codec
// itself never writes a length, since the frame already carries one.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

// HeaderSize is the number of bytes preceding the payload in the encoded
// form: 8 (id) + 8 (timestamp) + 1 (type).
const HeaderSize = 17

// Encode serializes msg into a newly allocated byte slice. Encoding is
// total on valid messages: it never fails for a well-formed MessageType.
func Encode(msg api.Message) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("codec: invalid message type %d: %w", msg.Type, api.NewError(api.KindCodec, "unknown message type", nil))
	}
	buf := make([]byte, HeaderSize+len(msg.Payload))
	binary.LittleEndian.PutUint64(buf[0:8], msg.ID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(msg.Timestamp))
	buf[16] = byte(msg.Type)
	copy(buf[HeaderSize:], msg.Payload)
	return buf, nil
}

// EncodeInto serializes msg into dst, growing it if necessary, and returns
// the slice written. Used on hot paths that want to reuse a pooled buffer
// instead of allocating per call.
func EncodeInto(dst []byte, msg api.Message) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("codec: invalid message type %d", msg.Type)
	}
	total := HeaderSize + len(msg.Payload)
	if cap(dst) < total {
		dst = make([]byte, total)
	} else {
		dst = dst[:total]
	}
	binary.LittleEndian.PutUint64(dst[0:8], msg.ID)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(msg.Timestamp))
	dst[16] = byte(msg.Type)
	copy(dst[HeaderSize:], msg.Payload)
	return dst, nil
}

// Decode parses a previously encoded record. It fails with a wrapped
// api.KindCodec error when the buffer is shorter than the header or the
// type tag is out of range.
func Decode(buf []byte) (api.Message, error) {
	if len(buf) < HeaderSize {
		return api.Message{}, fmt.Errorf("codec: truncated record (%d bytes): %w", len(buf), api.NewError(api.KindCodec, "truncated buffer", nil))
	}
	msgType := api.MessageType(buf[16])
	if !msgType.Valid() {
		return api.Message{}, fmt.Errorf("codec: invalid type tag %d: %w", buf[16], api.NewError(api.KindCodec, "unknown message type", nil))
	}
	payload := make([]byte, len(buf)-HeaderSize)
	copy(payload, buf[HeaderSize:])
	return api.Message{
		ID:        binary.LittleEndian.Uint64(buf[0:8]),
		Timestamp: int64(binary.LittleEndian.Uint64(buf[8:16])),
		Type:      msgType,
		Payload:   payload,
	}, nil
}

// MaxDecodedLen validates a framed length prefix against a transport's
// declared maximum before any bytes are read off the wire, per the
// self-delimiting framing invariant in the data model.
func MaxDecodedLen(frameLen, max int) error {
	if frameLen <= 0 {
		return fmt.Errorf("codec: non-positive frame length %d: %w", frameLen, api.ErrCorruption)
	}
	if frameLen > max {
		return fmt.Errorf("codec: frame length %d exceeds max %d: %w", frameLen, max, api.NewError(api.KindCodec, "frame too large", nil))
	}
	return nil
}
