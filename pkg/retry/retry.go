// Package retry runs calls to external services (Discord REST API, object
// storage) again with capped exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MARKING
// ══════════════════════════════════════════════════════════════════════════════

// RetryableError marks a failure worth another attempt. Unmarked errors end
// Do immediately.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err as transient. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// RetryAfter extracts a server-provided wait (e.g. an HTTP 429 retry_after)
// from err, when any error in its chain implements RetryAfter() time.Duration.
func RetryAfter(err error) (time.Duration, bool) {
	var hinted interface{ RetryAfter() time.Duration }
	if errors.As(err, &hinted) {
		if d := hinted.RetryAfter(); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// OnRetryFunc is told about each retry before the backoff wait.
type OnRetryFunc func(attempt int, err error, delay time.Duration)

type policy struct {
	attempts   int
	base       time.Duration
	ceiling    time.Duration
	multiplier float64
	jitter     float64
	onRetry    OnRetryFunc
}

// Option adjusts a Retrier. Out-of-range values are ignored.
type Option func(*policy)

// WithMaxAttempts sets the total number of attempts, the first included.
func WithMaxAttempts(n int) Option {
	return func(p *policy) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithInitialDelay sets the wait before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.base = d
		}
	}
}

// WithJitter sets the random spread applied to each wait, from 0 to 1.
func WithJitter(j float64) Option {
	return func(p *policy) {
		if j >= 0 && j <= 1 {
			p.jitter = j
		}
	}
}

// WithOnRetry installs a callback, typically for logging or metrics.
func WithOnRetry(fn OnRetryFunc) Option {
	return func(p *policy) { p.onRetry = fn }
}

// Retrier runs an operation until it succeeds, fails permanently or runs
// out of attempts.
type Retrier struct {
	p policy
}

// New creates a Retrier: 3 attempts, 100ms doubling up to 30s, 10% jitter.
func New(opts ...Option) *Retrier {
	p := policy{attempts: 3, base: 100 * time.Millisecond, ceiling: 30 * time.Second, multiplier: 2, jitter: 0.1}
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{p: p}
}

// Do calls op until it returns nil or an error not marked Retryable. After
// the last attempt the Retryable marker is stripped. Cancelling ctx stops
// the wait and returns the last failure.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		var marked *RetryableError
		if err == nil || !errors.As(err, &marked) {
			return err
		}
		last = err
		if attempt >= r.p.attempts {
			return marked.Err
		}

		wait := r.backoff(attempt)
		if hint, ok := RetryAfter(err); ok && hint > wait {
			wait = hint
		}
		if r.p.onRetry != nil {
			r.p.onRetry(attempt, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
}

// backoff is base * multiplier^(attempt-1), capped, then spread by jitter.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := math.Min(float64(r.p.base)*math.Pow(r.p.multiplier, float64(attempt-1)), float64(r.p.ceiling))
	if r.p.jitter > 0 {
		d += d * r.p.jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// DiscordRetrier returns a Retrier for Discord REST calls: 4 attempts from
// 500ms doubling up to 10s. A 429 carrying retry_after waits at least that
// long. opts are applied over the preset.
func DiscordRetrier(onRetry OnRetryFunc, opts ...Option) *Retrier {
	r := New(append([]Option{
		WithMaxAttempts(4),
		WithInitialDelay(500 * time.Millisecond),
		WithJitter(0.2),
		WithOnRetry(onRetry),
	}, opts...)...)
	r.p.ceiling = 10 * time.Second
	return r
}

// ObjectStoreRetrier returns a Retrier for backup uploads: 3 attempts from
// 1s tripling up to 15s.
func ObjectStoreRetrier() *Retrier {
	r := New(WithMaxAttempts(3), WithInitialDelay(time.Second))
	r.p.multiplier = 3
	r.p.ceiling = 15 * time.Second
	return r
}
