package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := api.NewMessage(42, api.MessageRequest, []byte("hello world"))
	msg.Timestamp = 1234567890

	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) != HeaderSize+len(msg.Payload) {
		t.Fatalf("encoded length = %d, want %d", len(buf), HeaderSize+len(msg.Payload))
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ID != msg.ID || got.Timestamp != msg.Timestamp || got.Type != msg.Type {
		t.Fatalf("decoded header mismatch: got %+v, want %+v", got, msg)
	}
	if !bytes.Equal(got.Payload, msg.Payload) {
		t.Fatalf("decoded payload = %q, want %q", got.Payload, msg.Payload)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	msg := api.NewMessage(1, api.MessagePing, nil)
	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) != HeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), HeaderSize)
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("payload = %v, want empty", got.Payload)
	}
}

func TestEncodeInvalidType(t *testing.T) {
	msg := api.Message{ID: 1, Type: api.MessageType(200)}
	if _, err := Encode(msg); err == nil {
		t.Fatal("Encode: expected error for invalid type, got nil")
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("Decode: expected error for truncated buffer, got nil")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Decode error does not wrap *api.Error: %v", err)
	}
	if apiErr.Kind != api.KindCodec {
		t.Fatalf("error kind = %v, want %v", apiErr.Kind, api.KindCodec)
	}
}

func TestDecodeInvalidTag(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[16] = 250
	if _, err := Decode(buf); err == nil {
		t.Fatal("Decode: expected error for invalid type tag, got nil")
	}
}

func TestMaxDecodedLen(t *testing.T) {
	if err := MaxDecodedLen(100, 1000); err != nil {
		t.Fatalf("MaxDecodedLen(100, 1000) = %v, want nil", err)
	}
	if err := MaxDecodedLen(0, 1000); err == nil {
		t.Fatal("MaxDecodedLen(0, ...) expected error")
	}
	if err := MaxDecodedLen(-5, 1000); err == nil {
		t.Fatal("MaxDecodedLen(-5, ...) expected error")
	}
	if err := MaxDecodedLen(2000, 1000); err == nil {
		t.Fatal("MaxDecodedLen(2000, 1000) expected error")
	}
}

func TestEncodeIntoReusesCapacity(t *testing.T) {
	dst := make([]byte, 0, 64)
	msg := api.NewMessage(7, api.MessageOneWay, []byte("abc"))
	out, err := EncodeInto(dst, msg)
	if err != nil {
		t.Fatalf("EncodeInto: %v", err)
	}
	if len(out) != HeaderSize+3 {
		t.Fatalf("len(out) = %d, want %d", len(out), HeaderSize+3)
	}
	got, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got.Payload, msg.Payload) {
		t.Fatalf("payload = %q, want %q", got.Payload, msg.Payload)
	}
}
