package driver

import (
	"context"
	"errors"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/internal/histogram"
	"github.com/redhat-performance/rusty-comms-sub000/internal/throughput"
)

const (
	perOpTimeout     = 50 * time.Millisecond
	retrySleep       = time.Millisecond
	serverDrainGrace = 200 * time.Millisecond
)

// loopResult is what one side of a one-way or round-trip measurement loop
// produces.
type loopResult struct {
	Latency    *histogram.Collector
	Throughput throughput.Metrics
	Sent       int
	Err        error
}

// runOneWay drives spec.md §4.9's one-way state machine:
// IDLE -> WARMUP -> MEASURE(one-way) -> DRAIN -> DONE.
// server receives and discards every message; client sends and times each
// one. The server loop runs until ctx is done or a Receive fails with a
// non-timeout error, and closes serverDone itself when it exits.
func runOneWay(ctx context.Context, client, server api.Transport, cfg Config) loopResult {
	serverDone := make(chan struct{})
	go serverDiscardLoop(ctx, server, serverDone)
	defer func() {
		<-drainWithGrace(serverDone)
	}()

	payload := make([]byte, cfg.MessageSize)

	for i := 0; i < cfg.WarmupIterations; i++ {
		msg := api.NewMessage(uint64(i), api.MessageOneWay, payload)
		_ = sendWithRetry(ctx, client, msg)
	}

	collector := histogram.New(histogram.LatencyOneWay)
	counter := throughput.New()

	deadline := time.Time{}
	if cfg.UsesDuration() {
		deadline = time.Now().Add(time.Duration(cfg.DurationSeconds * float64(time.Second)))
	}

	sent := 0
	var loopErr error
	for {
		if cfg.UsesDuration() {
			if time.Now().After(deadline) {
				break
			}
		} else if sent >= cfg.Iterations {
			break
		}

		msg := api.NewMessage(uint64(sent), api.MessageOneWay, payload)
		t0 := time.Now()
		if err := sendWithRetry(ctx, client, msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			loopErr = err
			break
		}
		if err := collector.Record(time.Since(t0)); err != nil {
			loopErr = err
			break
		}
		counter.Record(len(payload))
		sent++
	}
	counter.Stop()

	return loopResult{Latency: collector, Throughput: counter.Snapshot(), Sent: sent, Err: loopErr}
}

// runRoundTrip drives spec.md §4.9's round-trip state machine: the server
// pairs each Request with a Response whose id is request.id + 1_000_000,
// echoing the payload; the client records the full request/response
// latency.
func runRoundTrip(ctx context.Context, client, server api.Transport, cfg Config) loopResult {
	serverDone := make(chan struct{})
	go serverEchoLoop(ctx, server, serverDone)
	defer func() {
		<-drainWithGrace(serverDone)
	}()

	payload := make([]byte, cfg.MessageSize)

	for i := 0; i < cfg.WarmupIterations; i++ {
		_, _ = roundTripOnce(ctx, client, uint64(i), payload)
	}

	collector := histogram.New(histogram.LatencyRoundTrip)
	counter := throughput.New()

	deadline := time.Time{}
	if cfg.UsesDuration() {
		deadline = time.Now().Add(time.Duration(cfg.DurationSeconds * float64(time.Second)))
	}

	sent := 0
	var loopErr error
	for {
		if cfg.UsesDuration() {
			if time.Now().After(deadline) {
				break
			}
		} else if sent >= cfg.Iterations {
			break
		}

		t0 := time.Now()
		if _, err := roundTripOnce(ctx, client, uint64(sent), payload); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			loopErr = err
			break
		}
		if err := collector.Record(time.Since(t0)); err != nil {
			loopErr = err
			break
		}
		counter.Record(len(payload))
		sent++
	}
	counter.Stop()

	return loopResult{Latency: collector, Throughput: counter.Snapshot(), Sent: sent, Err: loopErr}
}

// roundTripOnce sends one Request and blocks for its paired Response.
func roundTripOnce(ctx context.Context, client api.Transport, id uint64, payload []byte) (api.Message, error) {
	req := api.NewMessage(id, api.MessageRequest, payload)
	if err := sendWithRetry(ctx, client, req); err != nil {
		return api.Message{}, err
	}
	return receiveWithRetry(ctx, client)
}

// sendWithRetry wraps Send in a 50ms per-operation timeout; on timeout it
// sleeps 1ms and retries, bounded only by ctx (the overall run budget). A
// hard transport error is returned immediately.
func sendWithRetry(ctx context.Context, t api.Transport, msg api.Message) error {
	for {
		opCtx, cancel := context.WithTimeout(ctx, perOpTimeout)
		err := t.Send(opCtx, msg)
		timedOut := isOpTimeout(opCtx)
		cancel()
		if err == nil {
			return nil
		}
		if timedOut && ctx.Err() == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retrySleep):
				continue
			}
		}
		return err
	}
}

// receiveWithRetry mirrors sendWithRetry for the round-trip Response wait.
func receiveWithRetry(ctx context.Context, t api.Transport) (api.Message, error) {
	for {
		opCtx, cancel := context.WithTimeout(ctx, perOpTimeout)
		msg, err := t.Receive(opCtx)
		timedOut := isOpTimeout(opCtx)
		cancel()
		if err == nil {
			return msg, nil
		}
		if timedOut && ctx.Err() == nil {
			select {
			case <-ctx.Done():
				return api.Message{}, ctx.Err()
			case <-time.After(retrySleep):
				continue
			}
		}
		return api.Message{}, err
	}
}

// isOpTimeout reports whether opCtx's own deadline has elapsed, independent
// of whatever error the transport returned or how cancel() races with the
// context's internal timer. The underlying transport wraps the raw net
// timeout through api.NewError, so it never unwraps to
// context.DeadlineExceeded; comparing wall-clock time against the deadline
// set on opCtx sidesteps that wrapping entirely.
func isOpTimeout(opCtx context.Context) bool {
	deadline, ok := opCtx.Deadline()
	return ok && !time.Now().Before(deadline)
}

// serverDiscardLoop receives and discards messages until ctx is done or
// the transport reports a non-recoverable error.
func serverDiscardLoop(ctx context.Context, server api.Transport, done chan<- struct{}) {
	defer close(done)
	for {
		opCtx, cancel := context.WithTimeout(ctx, perOpTimeout)
		_, err := server.Receive(opCtx)
		timedOut := isOpTimeout(opCtx)
		cancel()
		if err != nil {
			if timedOut && ctx.Err() == nil {
				continue
			}
			return
		}
	}
}

// serverEchoLoop receives Request messages and answers each with the
// paired Response per spec.md §4.9.
func serverEchoLoop(ctx context.Context, server api.Transport, done chan<- struct{}) {
	defer close(done)
	for {
		opCtx, cancel := context.WithTimeout(ctx, perOpTimeout)
		req, err := server.Receive(opCtx)
		timedOut := isOpTimeout(opCtx)
		cancel()
		if err != nil {
			if timedOut && ctx.Err() == nil {
				continue
			}
			return
		}
		resp := api.ResponseTo(req, req.Payload)
		sendCtx, cancel := context.WithTimeout(ctx, perOpTimeout)
		err = server.Send(sendCtx, resp)
		cancel()
		if err != nil {
			return
		}
	}
}

// drainWithGrace waits for the server loop to exit (done closed), bounded
// by serverDrainGrace so a hung server loop can never block result
// finalization indefinitely.
func drainWithGrace(done <-chan struct{}) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		select {
		case <-done:
		case <-time.After(serverDrainGrace):
		}
	}()
	return out
}
