// Package bufpool implements size-classed buffer pooling for benchmark
// payload and framing buffers, reusing allocations across the millions of
// Send/Receive calls a single run performs. Each size class's free list is
// an internal/concurrency.LockFreeQueue rather than a sync.Pool, so a
// Get/Put pair never takes a lock on the hot encode path (transport/uds and
// transport/tcp's Send call Get/Put once per message).
package bufpool

import (
	"sync"

	"github.com/redhat-performance/rusty-comms-sub000/internal/concurrency"
)

// sizeClasses are the power-of-two buckets payload buffers are rounded up
// to. A run's message size is fixed for its whole duration, so in practice
// each run only ever touches one or two classes.
var sizeClasses = [...]int{
	256,
	1 * 1024,
	4 * 1024,
	16 * 1024,
	64 * 1024,
	256 * 1024,
	1024 * 1024,
	4 * 1024 * 1024,
	16 * 1024 * 1024,
}

func classFor(size int) int {
	for _, c := range sizeClasses {
		if size <= c {
			return c
		}
	}
	return size
}

// freeListCapacity bounds how many idle buffers a size class retains; a
// class's LockFreeQueue simply drops a returned buffer (for GC to reclaim)
// once the list is full, trading a little extra allocation under heavy
// concurrency for a fixed memory ceiling per class.
const freeListCapacity = 128

// classPool is one size class's free list.
type classPool struct {
	class int
	free  *concurrency.LockFreeQueue[[]byte]
}

func newClassPool(class int) *classPool {
	return &classPool{class: class, free: concurrency.NewLockFreeQueue[[]byte](freeListCapacity)}
}

func (cp *classPool) get() []byte {
	if buf, ok := cp.free.Dequeue(); ok {
		return buf
	}
	return make([]byte, cp.class)
}

func (cp *classPool) put(buf []byte) {
	cp.free.Enqueue(buf[:cap(buf)])
}

// Pool hands out []byte buffers sized to the smallest size class that fits
// a request, backed by a lock-free free list per class.
type Pool struct {
	mu      sync.Mutex
	classes map[int]*classPool
}

// New builds an empty Pool.
func New() *Pool {
	return &Pool{classes: make(map[int]*classPool)}
}

// Get returns a buffer with length size, capacity rounded up to the
// enclosing size class.
func (p *Pool) Get(size int) []byte {
	class := classFor(size)
	cp := p.poolFor(class)
	return cp.get()[:size]
}

// Put returns buf to its size class's pool for reuse. buf's capacity must
// equal one of the declared size classes (i.e. it was returned by Get).
func (p *Pool) Put(buf []byte) {
	class := cap(buf)
	p.mu.Lock()
	cp, ok := p.classes[class]
	p.mu.Unlock()
	if !ok {
		return
	}
	cp.put(buf)
}

func (p *Pool) poolFor(class int) *classPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp, ok := p.classes[class]
	if ok {
		return cp
	}
	cp = newClassPool(class)
	p.classes[class] = cp
	return cp
}
