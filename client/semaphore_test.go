package client

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestOpSemaphore_AcquireRelease(t *testing.T) {
	sem := newOpSemaphore(2, -1, time.Second)
	ctx := context.Background()

	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("First Acquire failed: %v", err)
	}
	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Second Acquire failed: %v", err)
	}
	if active, _, max := sem.Stats(); active != 2 || max != 2 {
		t.Errorf("Stats() active=%d max=%d, want 2/2", active, max)
	}

	sem.Release()
	sem.Release()
	if active, _, _ := sem.Stats(); active != 0 {
		t.Errorf("Expected 0 active after release, got %d", active)
	}

	// Extra release must not block or panic.
	sem.Release()
}

func TestOpSemaphore_QueueLimit(t *testing.T) {
	sem := newOpSemaphore(1, 1, time.Second)
	ctx := context.Background()

	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		if err := sem.Acquire(ctx); err != nil {
			t.Errorf("queued Acquire failed: %v", err)
		}
	}()

	// Give goroutine time to enter the queue
	deadline := time.Now().Add(time.Second)
	for {
		if _, queued, _ := sem.Stats(); queued == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("waiter never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := sem.Acquire(ctx); err != ErrQueueFull {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	sem.Release()
	<-acquired
	sem.Release()
}

func TestOpSemaphore_ZeroQueue(t *testing.T) {
	sem := newOpSemaphore(1, 0, time.Second)
	ctx := context.Background()

	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := sem.Acquire(ctx); err != ErrQueueFull {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}

func TestOpSemaphore_Timeout(t *testing.T) {
	sem := newOpSemaphore(1, -1, 50*time.Millisecond)
	ctx := context.Background()

	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	start := time.Now()
	err := sem.Acquire(ctx)
	elapsed := time.Since(start)

	if err != ErrAcquireTimeout {
		t.Errorf("Expected ErrAcquireTimeout, got %v", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("Timeout returned too early: %v", elapsed)
	}
}

func TestOpSemaphore_ContextCancel(t *testing.T) {
	sem := newOpSemaphore(1, -1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if err := sem.Acquire(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestOpSemaphore_Concurrency(t *testing.T) {
	const limit = 5
	sem := newOpSemaphore(limit, -1, 5*time.Second)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		current int
		peak    int
		wg      sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer sem.Release()

			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if peak > limit {
		t.Errorf("Max observed concurrency %d exceeded limit %d", peak, limit)
	}
}

func TestNewOpSemaphore_Defaults(t *testing.T) {
	sem := newOpSemaphore(0, -1, 0)
	if sem.maxSize != 1 {
		t.Errorf("maxSize = %d, want 1", sem.maxSize)
	}
	if sem.timeout != defaultAcquireTimeout {
		t.Errorf("timeout = %v, want %v", sem.timeout, defaultAcquireTimeout)
	}
}
