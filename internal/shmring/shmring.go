// Package shmring implements the wait-free single-producer/single-consumer
// ring buffer that sits inside a shared memory segment, per the
// RingBufferHeader data model: a fixed header of machine-word atomics
// followed by capacity bytes of record storage.
//
// The header is overlaid directly on the mapped bytes using unsafe.Pointer,
// the same trick the package's mmap-backed callers already rely on for
// zero-copy buffer reuse; every field is a sync/atomic type so the layout
// is safe to share between the two processes mapping the same segment.
package shmring

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/redhat-performance/rusty-comms-sub000/api"
)

// lengthPrefixSize is the size, in bytes, of the little-endian length that
// precedes every record in the ring, mirroring the stream transports'
// framing.
const lengthPrefixSize = 4

// header is placed at offset 0 of the shared segment. All fields are
// accessed with acquire loads / release stores so the producer and
// consumer, running in separate processes, observe a consistent view
// without a lock.
type header struct {
	capacity     atomic.Uint64
	readIndex    atomic.Uint64
	writeIndex   atomic.Uint64
	serverReady  atomic.Uint32
	clientReady  atomic.Uint32
	shutdown     atomic.Uint32
	_            uint32 // pad to keep messageCount 8-byte aligned
	messageCount atomic.Uint64
}

// HeaderSize is the number of bytes the header occupies at the front of the
// segment; callers must size the segment as HeaderSize+capacity.
const HeaderSize = uintptr(unsafe.Sizeof(header{}))

// Role identifies which side of the SPSC channel this process plays.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Ring is a view over a mapped shared memory segment: the header plus the
// ring storage that follows it. Ring does not own the underlying mapping;
// callers (the SHM transport) are responsible for mmap/munmap.
type Ring struct {
	hdr  *header
	data []byte
	role Role
}

// Attach overlays a Ring onto segment, which must be at least
// HeaderSize+capacity bytes. When create is true the header is initialized
// fresh (capacity written, indices zeroed, readiness flags cleared);
// otherwise the existing header is trusted as-is (the peer created it).
func Attach(segment []byte, capacity uint64, role Role, create bool) (*Ring, error) {
	if uint64(len(segment)) < uint64(HeaderSize)+capacity {
		return nil, api.NewError(api.KindTransportSetup, "shared memory segment smaller than header+capacity", nil)
	}
	hdr := (*header)(unsafe.Pointer(&segment[0]))
	r := &Ring{hdr: hdr, data: segment[HeaderSize : uint64(HeaderSize)+capacity], role: role}
	if create {
		hdr.capacity.Store(capacity)
		hdr.readIndex.Store(0)
		hdr.writeIndex.Store(0)
		hdr.serverReady.Store(0)
		hdr.clientReady.Store(0)
		hdr.shutdown.Store(0)
		hdr.messageCount.Store(0)
	}
	return r, nil
}

func (r *Ring) capacity() uint64 { return r.hdr.capacity.Load() }

// availableWrite returns the number of free bytes the producer may use,
// always reserving one byte to distinguish empty from full.
func (r *Ring) availableWrite() uint64 {
	capacity := r.capacity()
	read := r.hdr.readIndex.Load()
	write := r.hdr.writeIndex.Load()
	if write >= read {
		return capacity - (write - read) - 1
	}
	return read - write - 1
}

// availableRead returns the number of unread bytes.
func (r *Ring) availableRead() uint64 {
	capacity := r.capacity()
	read := r.hdr.readIndex.Load()
	write := r.hdr.writeIndex.Load()
	if write >= read {
		return write - read
	}
	return capacity - (read - write)
}

// AvailableWrite exposes the current free-space count, used by boundary
// tests asserting the capacity-1 invariant.
func (r *Ring) AvailableWrite() uint64 { return r.availableWrite() }

// AvailableRead exposes the current unread-byte count.
func (r *Ring) AvailableRead() uint64 { return r.availableRead() }

// Capacity exposes the ring's configured capacity.
func (r *Ring) Capacity() uint64 { return r.capacity() }

// ErrRingFull and ErrRingEmpty signal that a single non-blocking attempt
// could not complete; callers apply their own backoff policy around these.
var (
	ErrRingFull  = errors.New("shmring: not enough space")
	ErrRingEmpty = errors.New("shmring: no data available")
)

// TryWriteRecord attempts one non-blocking write of a length-prefixed
// record. It never blocks; callers implement the retry/backoff policy.
func (r *Ring) TryWriteRecord(payload []byte) error {
	required := uint64(lengthPrefixSize + len(payload))
	if r.availableWrite() < required {
		return ErrRingFull
	}

	capacity := r.capacity()
	write := r.hdr.writeIndex.Load()

	var lenBuf [lengthPrefixSize]byte
	putUint32LE(lenBuf[:], uint32(len(payload)))
	r.writeBytes(write, lenBuf[:], capacity)
	r.writeBytes((write+lengthPrefixSize)%capacity, payload, capacity)

	r.hdr.writeIndex.Store((write + required) % capacity)
	r.hdr.messageCount.Add(1)
	return nil
}

// TryReadRecord attempts one non-blocking read of a length-prefixed record.
// It never blocks; callers implement the retry/backoff policy. A decoded
// length of zero or greater than capacity is reported as a KindCorruption
// error, never retried.
func (r *Ring) TryReadRecord() ([]byte, error) {
	if r.availableRead() < lengthPrefixSize {
		return nil, ErrRingEmpty
	}

	capacity := r.capacity()
	read := r.hdr.readIndex.Load()

	var lenBuf [lengthPrefixSize]byte
	r.readBytes(read, lenBuf[:], capacity)
	length := uint64(getUint32LE(lenBuf[:]))

	if length == 0 || length > capacity {
		return nil, api.NewError(api.KindCorruption, "decoded ring record length out of range", nil).WithContext("length", length)
	}
	if r.availableRead() < length+lengthPrefixSize {
		return nil, ErrRingEmpty
	}

	payload := make([]byte, length)
	r.readBytes((read+lengthPrefixSize)%capacity, payload, capacity)

	r.hdr.readIndex.Store((read + length + lengthPrefixSize) % capacity)
	return payload, nil
}

func (r *Ring) writeBytes(at uint64, src []byte, capacity uint64) {
	for i, b := range src {
		r.data[(at+uint64(i))%capacity] = b
	}
}

func (r *Ring) readBytes(at uint64, dst []byte, capacity uint64) {
	for i := range dst {
		dst[i] = r.data[(at+uint64(i))%capacity]
	}
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// MarkReady sets this side's readiness flag. The server sets server_ready
// exactly once; the client sets client_ready exactly once; double-setting
// is harmless since both flags only ever transition false->true.
func (r *Ring) MarkReady() {
	switch r.role {
	case RoleServer:
		r.hdr.serverReady.Store(1)
	case RoleClient:
		r.hdr.clientReady.Store(1)
	}
}

// WaitForPeer spins with 10ms sleeps until the opposite side's readiness
// flag is observed, or returns an error wrapping api.ErrOperationTimeout.
func (r *Ring) WaitForPeer(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ready := uint32(0)
		switch r.role {
		case RoleServer:
			ready = r.hdr.clientReady.Load()
		case RoleClient:
			ready = r.hdr.serverReady.Load()
		}
		if ready != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("shmring: timed out waiting for peer readiness: %w", api.ErrOperationTimeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// RequestShutdown records a shutdown request; only the first false->true
// transition is meaningful, matching the shared shutdown flag's contract.
func (r *Ring) RequestShutdown() { r.hdr.shutdown.Store(1) }

// ShutdownRequested reports whether either side has requested shutdown.
func (r *Ring) ShutdownRequested() bool { return r.hdr.shutdown.Load() != 0 }

// MessageCount reports the running count of records written, for
// diagnostics and tests.
func (r *Ring) MessageCount() uint64 { return r.hdr.messageCount.Load() }
