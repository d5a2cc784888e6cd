package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTask(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var ran atomic.Bool
	err := p.Submit(context.Background(), func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !ran.Load() {
		t.Fatal("task did not run")
	}
}

func TestPoolPropagatesTaskError(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	wantErr := errors.New("boom")
	err := p.Submit(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestPoolSubmitAfterCloseFails(t *testing.T) {
	p := NewPool(1)
	p.Close()

	err := p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("got %v, want ErrPoolClosed", err)
	}
}

func TestPoolSubmitRespectsContextCancellation(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	block := make(chan struct{})
	defer close(block)
	// run one task to completion so the sole worker is live; the goroutine
	// below then occupies it so the next submission queues.
	started := make(chan struct{})
	if err := p.Submit(context.Background(), func(ctx context.Context) error {
		close(started)
		return nil
	}); err != nil {
		t.Fatalf("warmup submit failed: %v", err)
	}
	<-started

	var busy atomic.Bool
	busy.Store(true)
	go func() {
		_ = p.Submit(context.Background(), func(ctx context.Context) error {
			<-block
			busy.Store(false)
			return nil
		})
	}()
	// give the blocking task a moment to claim the worker.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestPoolRunsManyTasksConcurrently(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	const n = 100
	var completed atomic.Int64
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			errCh <- p.Submit(context.Background(), func(ctx context.Context) error {
				completed.Add(1)
				return nil
			})
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("task %d failed: %v", i, err)
		}
	}
	if got := completed.Load(); got != n {
		t.Fatalf("completed %d tasks, want %d", got, n)
	}
}
