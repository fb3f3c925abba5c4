package apierr

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds retries of a remote call with exponential backoff and jitter.
//
// Invalid values are normalized:
//   - MaxAttempts < 1 becomes 1 (single attempt)
//   - BaseDelay <= 0 becomes 1ms
//   - MaxDelay <= 0 becomes BaseDelay
//   - Jitter is clamped to [0, 1]
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter spreads each delay uniformly in [d*(1-Jitter), d*(1+Jitter)].
	Jitter float64

	// OnRetry, when set, is called before sleeping ahead of attempt n (1-based).
	OnRetry func(attempt int, err error, delay time.Duration)

	randFloat func() float64
}

func (p *RetryPolicy) normalize() {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = p.BaseDelay
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	if p.randFloat == nil {
		p.randFloat = rand.Float64
	}
}

// Delay returns the wait before the given retry (1 = first retry).
func (p RetryPolicy) Delay(retry int) time.Duration {
	p.normalize()
	if retry < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < retry && d < p.MaxDelay; i++ {
		d *= 2
	}
	d = min(d, p.MaxDelay)
	if p.Jitter == 0 {
		return d
	}
	spread := 1 + p.Jitter*(2*p.randFloat()-1)
	return time.Duration(float64(d) * spread)
}

// Retry executes fn until it succeeds, shouldRetry rejects the error, the
// context ends, or the attempt budget is spent. Exhaustion is reported as
// ErrRetriesExhausted wrapping the last error.
func Retry[T any](
	ctx context.Context,
	p RetryPolicy,
	fn func() (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	p.normalize()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.Delay(attempt - 1)
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr, delay)
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.MaxAttempts, lastErr)
}
