package concurrency

import (
	"sync"
	"testing"
)

func TestLockFreeQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewLockFreeQueue[int](8)
	for i := 0; i < 8; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue %d: unexpected full", i)
		}
	}
	if q.Enqueue(99) {
		t.Fatal("expected queue to report full at capacity")
	}
	for i := 0; i < 8; i++ {
		v, ok := q.Dequeue()
		if !ok {
			t.Fatalf("dequeue %d: unexpected empty", i)
		}
		if v != i {
			t.Fatalf("dequeue order: got %d want %d", v, i)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue after draining")
	}
}

func TestLockFreeQueueCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	q := NewLockFreeQueue[int](5)
	count := 0
	for q.Enqueue(count) {
		count++
	}
	if count != 8 {
		t.Fatalf("capacity rounded to %d, want 8", count)
	}
}

func TestLockFreeQueueConcurrentProducersConsumers(t *testing.T) {
	const (
		producers     = 10
		consumers     = 10
		itemsPerGoroutine = 2000
	)
	q := NewLockFreeQueue[int](1024)

	var produced sync.WaitGroup
	produced.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer produced.Done()
			for i := 0; i < itemsPerGoroutine; i++ {
				for !q.Enqueue(i) {
					// spin until a slot frees up
				}
			}
		}()
	}

	var consumed int64
	var mu sync.Mutex
	var consume sync.WaitGroup
	consume.Add(consumers)
	done := make(chan struct{})
	for c := 0; c < consumers; c++ {
		go func() {
			defer consume.Done()
			for {
				if _, ok := q.Dequeue(); ok {
					mu.Lock()
					consumed++
					mu.Unlock()
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	produced.Wait()

	want := int64(producers * itemsPerGoroutine)
	for {
		mu.Lock()
		got := consumed
		mu.Unlock()
		if got >= want {
			break
		}
	}
	close(done)
	consume.Wait()

	mu.Lock()
	defer mu.Unlock()
	if consumed != want {
		t.Fatalf("consumed %d items, want %d", consumed, want)
	}
}
