package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is returned when the operation queue limit is reached.
	ErrQueueFull = errors.New("client: operation queue is full")

	// ErrAcquireTimeout is returned when waiting for an operation slot times out.
	ErrAcquireTimeout = errors.New("client: timeout waiting for an operation slot")
)

// defaultAcquireTimeout applies when no timeout was configured.
const defaultAcquireTimeout = 60 * time.Second

// opSemaphore bounds the number of in-flight async operations and queues
// the rest client-side.
type opSemaphore struct {
	sem      chan struct{}
	maxSize  int
	queued   atomic.Int32
	maxQueue int
	timeout  time.Duration
}

// newOpSemaphore creates a semaphore allowing maxConcurrent operations.
// maxQueue limits waiters (-1 = unbounded, 0 = no queue).
func newOpSemaphore(maxConcurrent, maxQueue int, timeout time.Duration) *opSemaphore {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}
	return &opSemaphore{
		sem:      make(chan struct{}, maxConcurrent),
		maxSize:  maxConcurrent,
		maxQueue: maxQueue,
		timeout:  timeout,
	}
}

// Acquire blocks until a slot is free, the timeout elapses or ctx is done.
func (s *opSemaphore) Acquire(ctx context.Context) error {
	// Free slot: take it without counting as a waiter, so maxQueue == 0
	// only rejects when all slots are busy.
	select {
	case s.sem <- struct{}{}:
		return nil
	default:
	}

	waiting := s.queued.Add(1)
	defer s.queued.Add(-1)

	if s.maxQueue >= 0 && int(waiting) > s.maxQueue {
		return ErrQueueFull
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrAcquireTimeout
	}
}

// Release frees a slot. It must only be called after a successful Acquire.
func (s *opSemaphore) Release() {
	select {
	case <-s.sem:
	default:
	}
}

// Stats returns the number of busy slots, waiters and the slot limit.
func (s *opSemaphore) Stats() (active, queued, max int) {
	return len(s.sem), int(s.queued.Load()), s.maxSize
}
