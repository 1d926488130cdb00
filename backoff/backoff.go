package backoff

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff maps a retry attempt index to the duration to wait before the
// next attempt.
type Backoff interface {
	// Next returns the duration to wait after the given attempt index.
	Next(attempt int) time.Duration

	// Reset resets any internal state.
	Reset()
}

// Factory produces a fresh Backoff for each call. Stateful strategies such
// as DecorrelatedJitter must not be shared across concurrent calls, so the
// invoker asks the factory for a new instance per top-level invocation.
type Factory func() Backoff

// ConstantBackoff waits a fixed interval between attempts.
type ConstantBackoff struct {
	interval time.Duration
}

// NewConstantBackoff creates a new constant backoff.
func NewConstantBackoff(interval time.Duration) *ConstantBackoff {
	return &ConstantBackoff{interval: interval}
}

// Next implements Backoff.
func (b *ConstantBackoff) Next(attempt int) time.Duration {
	return b.interval
}

// Reset implements Backoff.
func (b *ConstantBackoff) Reset() {
	// ConstantBackoff is stateless, nothing to reset
}

// LinearBackoff grows the wait by a fixed increment per attempt.
type LinearBackoff struct {
	initial   time.Duration
	increment time.Duration
	max       time.Duration
}

// NewLinearBackoff creates a new linear backoff.
func NewLinearBackoff(initial, increment, max time.Duration) *LinearBackoff {
	return &LinearBackoff{
		initial:   initial,
		increment: increment,
		max:       max,
	}
}

// Next implements Backoff.
func (b *LinearBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	wait := b.initial + time.Duration(attempt)*b.increment
	if wait > b.max {
		wait = b.max
	}
	return wait
}

// Reset implements Backoff.
func (b *LinearBackoff) Reset() {
	// LinearBackoff is stateless, nothing to reset
}

// ExponentialBackoff implements exponential backoff with optional jitter.
type ExponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	factor  float64
	jitter  float64

	mu   sync.Mutex
	rand *rand.Rand
}

// NewExponentialBackoff creates a new exponential backoff.
func NewExponentialBackoff(initial, max time.Duration, factor, jitter float64) *ExponentialBackoff {
	return &ExponentialBackoff{
		initial: initial,
		max:     max,
		factor:  factor,
		jitter:  jitter,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
	}
}

// Next implements Backoff.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Calculate base wait: initial * factor^attempt
	wait := float64(b.initial) * math.Pow(b.factor, float64(attempt))

	if wait > float64(b.max) {
		wait = float64(b.max)
	}

	if b.jitter > 0 {
		b.mu.Lock()
		jitterRange := wait * b.jitter
		wait += (b.rand.Float64() * 2 * jitterRange) - jitterRange
		b.mu.Unlock()
	}

	if wait < 0 {
		wait = 0
	}

	return time.Duration(wait)
}

// Reset implements Backoff.
func (b *ExponentialBackoff) Reset() {
	// ExponentialBackoff is stateless, nothing to reset
}

// DecorrelatedJitterBackoff implements AWS-style decorrelated jitter backoff.
// Each wait depends on the previous one, so instances must not be shared
// across calls.
type DecorrelatedJitterBackoff struct {
	initial time.Duration
	max     time.Duration

	mu      sync.Mutex
	rand    *rand.Rand
	current time.Duration
}

// NewDecorrelatedJitterBackoff creates a new decorrelated jitter backoff.
func NewDecorrelatedJitterBackoff(initial, max time.Duration) *DecorrelatedJitterBackoff {
	return &DecorrelatedJitterBackoff{
		initial: initial,
		max:     max,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
		current: initial,
	}
}

// Next implements Backoff.
func (b *DecorrelatedJitterBackoff) Next(attempt int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if attempt == 0 {
		b.current = b.initial
		return b.current
	}

	// sleep = min(cap, random_between(base, sleep * 3))
	minWait := float64(b.initial)
	maxWait := float64(b.current) * 3

	wait := minWait + b.rand.Float64()*(maxWait-minWait)
	if wait > float64(b.max) {
		wait = float64(b.max)
	}

	b.current = time.Duration(wait)
	return b.current
}

// Reset implements Backoff.
func (b *DecorrelatedJitterBackoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
}
