package shmring

import (
	"fmt"
	"time"

	"github.com/redhat-performance/rusty-comms-sub000/api"
	"github.com/redhat-performance/rusty-comms-sub000/internal/concurrency"
)

const (
	sendRetryDelay   = time.Millisecond
	sendRetryBudget  = 5 * time.Second
	receiveRetryWait = time.Millisecond
)

// WriteRecord blocks, retrying every 1ms, until a record is written or the
// 5s retry budget is exhausted, at which point it fails with a wrapped
// ErrOperationTimeout.
func (r *Ring) WriteRecord(payload []byte) error {
	deadline := time.Now().Add(sendRetryBudget)
	backoff := concurrency.NewBackoff(sendRetryDelay, sendRetryDelay)
	for {
		err := r.TryWriteRecord(payload)
		if err == nil {
			return nil
		}
		if err != ErrRingFull {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("shmring: send timed out after %s: %w", sendRetryBudget, api.ErrOperationTimeout)
		}
		time.Sleep(backoff.Next())
	}
}

// ReadRecord blocks, retrying every 1ms, until a record is read or the 5s
// retry budget is exhausted.
func (r *Ring) ReadRecord() ([]byte, error) {
	deadline := time.Now().Add(sendRetryBudget)
	backoff := concurrency.NewBackoff(receiveRetryWait, receiveRetryWait)
	for {
		payload, err := r.TryReadRecord()
		if err == nil {
			return payload, nil
		}
		if err != ErrRingEmpty {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("shmring: receive timed out after %s: %w", sendRetryBudget, api.ErrOperationTimeout)
		}
		time.Sleep(backoff.Next())
	}
}
