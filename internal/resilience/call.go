package resilience

import (
	"context"
	"math/rand"
	"time"
)

// Backoff returns an exponential backoff duration for the provided attempt.
// Jitter is expressed as a fraction (e.g. 0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	delta := (rand.Float64()*2 - 1) * jitter
	return d + time.Duration(delta)
}

// Policy describes how a guarded call is retried.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	// Failure reports whether err counts against the breaker and is retried.
	// A nil Failure treats every non-nil error as a failure.
	Failure func(error) bool
	// Neutral reports whether err says nothing about the backend, such as a
	// caller cancellation. Neutral errors are returned without a retry and
	// release the breaker slot without recording an outcome.
	Neutral func(error) bool
}

func (p Policy) isNeutral(err error) bool {
	return err != nil && p.Neutral != nil && p.Neutral(err)
}

func (p Policy) isFailure(err error) bool {
	if err == nil {
		return false
	}
	if p.Failure == nil {
		return true
	}
	return p.Failure(err)
}

// Call runs fn under breaker b with the retry policy p. Neutral errors are
// returned immediately without touching breaker counts. Other errors that p
// does not classify as failures are returned immediately and count as a
// success. ErrOpenCircuit is returned when b refuses the call.
func Call[T any](ctx context.Context, b *Breaker, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if b != nil && !b.Allow(ctx) {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, ErrOpenCircuit
		}
		out, err := fn(ctx)
		if p.isNeutral(err) {
			if b != nil {
				b.Release()
			}
			return zero, err
		}
		failed := p.isFailure(err)
		if b != nil {
			b.Report(ctx, !failed)
		}
		if !failed {
			return out, err
		}
		lastErr = err
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		if b != nil && RetryAttempts != nil {
			RetryAttempts.WithLabelValues(b.target).Inc()
		}
		timer := time.NewTimer(Backoff(p.BaseBackoff, attempt, p.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
