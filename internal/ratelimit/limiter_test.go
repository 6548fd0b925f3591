package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Window length used by tests; long enough to avoid scheduler flakiness,
// short enough to keep the suite fast.
const testWindow = 200 * time.Millisecond

func TestAcquireWithinCapacityDoesNotBlock(t *testing.T) {
	l := newLimiter(3, testWindow)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > testWindow/2 {
		t.Fatalf("acquires within capacity took %v, expected immediate grants", elapsed)
	}
}

func TestAcquireBlocksUntilRefillBoundary(t *testing.T) {
	l := newLimiter(1, testWindow)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < testWindow/2 {
		t.Fatalf("second acquire returned after %v, expected to wait for the refill boundary", elapsed)
	}
}

func TestWindowCapacityNeverExceeded(t *testing.T) {
	const capacity = 4
	l := newLimiter(capacity, testWindow)
	ctx := context.Background()

	var mu sync.Mutex
	grants := make([]time.Time, 0, 16)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(grants) != 12 {
		t.Fatalf("expected 12 grants, got %d", len(grants))
	}
	// Count grants inside every rolling window; allow a small scheduling
	// slack below the boundary.
	for _, anchor := range grants {
		count := 0
		for _, ts := range grants {
			delta := ts.Sub(anchor)
			if delta >= 0 && delta < testWindow-20*time.Millisecond {
				count++
			}
		}
		if count > capacity {
			t.Fatalf("observed %d grants within one window, capacity is %d", count, capacity)
		}
	}
}

func TestFIFOAdmission(t *testing.T) {
	l := newLimiter(1, testWindow)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("seed acquire: %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		id := i
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("acquire %d: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}()
		// Serialize arrival so queue order is deterministic.
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, id := range order {
		if id != i {
			t.Fatalf("grants out of arrival order: %v", order)
		}
	}
}

func TestSetLimitTakesEffectOnNextRefill(t *testing.T) {
	l := newLimiter(1, testWindow)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("seed acquire: %v", err)
	}
	l.SetLimit(3)
	if got := l.Limit(); got != 1 {
		t.Fatalf("limit changed before refill: got %d, want 1", got)
	}

	// Wait out the window; the next refill applies the new capacity.
	time.Sleep(testWindow + 50*time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d after refill: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > testWindow/2 {
		t.Fatalf("new capacity not available after refill (took %v)", elapsed)
	}
	if got := l.Limit(); got != 3 {
		t.Fatalf("limit after refill: got %d, want 3", got)
	}
}

func TestAcquireCancellationReleasesQueueSlot(t *testing.T) {
	l := newLimiter(1, testWindow)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("seed acquire: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(cancelCtx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(testWindow):
		t.Fatal("cancelled acquire did not return promptly")
	}

	// The abandoned slot must not block the next caller past one refill.
	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("follow-up acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*testWindow {
		t.Fatalf("follow-up acquire waited %v, abandoned waiter leaked its slot", elapsed)
	}
}
