// Package ratelimit throttles outbound API calls to a requests-per-minute
// ceiling shared by every concurrent caller. The bucket refills in full once
// per window to match the remote service's window-based limiting, and waiters
// are admitted in FIFO order so no caller starves.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultWindow = time.Minute

// Limiter is a windowed token bucket. Acquire consumes one permit, blocking
// until the next refill boundary when the bucket is empty.
type Limiter struct {
	mu          sync.Mutex
	capacity    int
	nextLimit   int // applied at the next refill; 0 means unchanged
	tokens      int
	window      time.Duration
	windowStart time.Time
	waiters     []*waiter
	refill      *time.Timer
}

type waiter struct {
	granted chan struct{}
}

// New returns a limiter allowing requestsPerMinute permits per 60-second
// window. Values below 1 are raised to 1.
func New(requestsPerMinute int) *Limiter {
	return newLimiter(requestsPerMinute, defaultWindow)
}

func newLimiter(capacity int, window time.Duration) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		capacity:    capacity,
		tokens:      capacity,
		window:      window,
		windowStart: time.Now(),
	}
}

// Limit returns the current per-window capacity.
func (l *Limiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capacity
}

// SetLimit changes the per-window capacity starting at the next refill.
// In-flight permits and already-granted waiters are unaffected.
func (l *Limiter) SetLimit(requestsPerMinute int) {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	l.mu.Lock()
	l.nextLimit = requestsPerMinute
	l.mu.Unlock()
}

// Acquire blocks until a permit is available or ctx is done. Callers that
// arrive while others are queued wait behind them even if a token frees up
// first.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.refillLocked(time.Now())
	if len(l.waiters) == 0 && l.tokens > 0 {
		l.tokens--
		l.mu.Unlock()
		return nil
	}

	w := &waiter{granted: make(chan struct{})}
	l.waiters = append(l.waiters, w)
	l.scheduleRefillLocked()
	l.mu.Unlock()

	select {
	case <-w.granted:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-w.granted:
			// Granted while cancelling: hand the permit to the next waiter.
			l.tokens++
			l.grantLocked()
		default:
			l.removeWaiterLocked(w)
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

// refillLocked advances the window and restores the bucket when at least one
// full window has elapsed since the last refill.
func (l *Limiter) refillLocked(now time.Time) {
	elapsed := now.Sub(l.windowStart)
	if elapsed < l.window {
		return
	}
	windows := elapsed / l.window
	l.windowStart = l.windowStart.Add(windows * l.window)
	if l.nextLimit > 0 {
		l.capacity = l.nextLimit
		l.nextLimit = 0
	}
	l.tokens = l.capacity
	l.grantLocked()
}

// grantLocked hands tokens to queued waiters in arrival order.
func (l *Limiter) grantLocked() {
	for l.tokens > 0 && len(l.waiters) > 0 {
		w := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.tokens--
		close(w.granted)
	}
}

func (l *Limiter) removeWaiterLocked(target *waiter) {
	for i, w := range l.waiters {
		if w == target {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}

// scheduleRefillLocked arms a timer for the next window boundary when waiters
// are queued and no timer is pending.
func (l *Limiter) scheduleRefillLocked() {
	if l.refill != nil {
		return
	}
	delay := l.window - time.Since(l.windowStart)
	if delay < 0 {
		delay = 0
	}
	l.refill = time.AfterFunc(delay, func() {
		l.mu.Lock()
		l.refill = nil
		l.refillLocked(time.Now())
		if len(l.waiters) > 0 {
			l.scheduleRefillLocked()
		}
		l.mu.Unlock()
	})
}
