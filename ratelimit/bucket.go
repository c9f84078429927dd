package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pollInterval is how often WaitFor re-attempts a consume.
const pollInterval = 500 * time.Millisecond

// TokenBucket gates completion-token consumption per minute. One instance is
// shared by all concurrent query invocations in a process; all state mutation
// happens under a single mutex, so observers never see the level outside
// [0, capacity].
type TokenBucket struct {
	mu           sync.Mutex
	capacity     float64
	tokens       float64
	refillPerSec float64
	lastRefill   time.Time

	now func() time.Time // swapped in tests
}

// NewTokenBucket creates a bucket holding tokensPerMinute capacity that
// refills at the same rate. The bucket starts full.
func NewTokenBucket(tokensPerMinute int) *TokenBucket {
	cap := float64(tokensPerMinute)
	b := &TokenBucket{
		capacity:     cap,
		tokens:       cap,
		refillPerSec: cap / 60.0,
		now:          time.Now,
	}
	b.lastRefill = b.now()
	return b
}

// Consume refills the bucket for elapsed time, then atomically deducts n
// tokens if available. Returns false, leaving the bucket untouched, when the
// level is insufficient.
func (b *TokenBucket) Consume(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	need := float64(n)
	if b.tokens < need {
		return false
	}
	b.tokens -= need
	return true
}

// WaitFor blocks until n tokens can be consumed or timeout elapses,
// polling at a fixed interval. It never sleeps past the timeout and honors
// context cancellation.
func (b *TokenBucket) WaitFor(ctx context.Context, n int, timeout time.Duration) bool {
	deadline := b.now().Add(timeout)
	for {
		if b.Consume(n) {
			return true
		}
		remaining := deadline.Sub(b.now())
		if remaining <= 0 {
			return false
		}
		sleep := pollInterval
		if remaining < sleep {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// Tokens returns the current level after applying any pending refill.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}

// Capacity returns the configured bucket capacity.
func (b *TokenBucket) Capacity() float64 { return b.capacity }

func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
