package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior. Delays double per attempt up to MaxBackoff;
// rate-limited responses (429) use the longer RateLimitBackoff base with the
// same attempt budget.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first try.
	// Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first standard retry.
	// Default: 500ms.
	InitialBackoff time.Duration

	// RateLimitBackoff is the base delay used after a 429. Default: 10s.
	RateLimitBackoff time.Duration

	// MaxBackoff caps any computed delay. Default: 60s.
	MaxBackoff time.Duration

	// JitterFraction adds random jitter as a fraction of the computed delay.
	// Default: 0.2.
	JitterFraction float64

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the standard policy for vendor API calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		RateLimitBackoff: 10 * time.Second,
		MaxBackoff:       60 * time.Second,
		JitterFraction:   0.2,
	}
}

// Do executes fn under the policy, retrying according to the status class
// of each failure. Context cancellation stops retries immediately and the
// last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}

		class := Classify(err)
		if class == ClassFatal {
			return zero, lastErr
		}
		if attempt >= p.MaxAttempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}

		delay := p.backoff(attempt, class)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.RateLimitBackoff <= 0 {
		p.RateLimitBackoff = 10 * time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 60 * time.Second
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// backoff computes the delay for a given zero-based attempt. The pre-jitter
// delay is non-decreasing across attempts.
func (p Policy) backoff(attempt int, class Class) time.Duration {
	base := p.InitialBackoff
	if class == ClassRateLimited {
		base = p.RateLimitBackoff
	}

	delay := float64(base) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}

	if p.JitterFraction > 0 {
		// Additive-only jitter keeps successive delays monotonic.
		delay += rand.Float64() * delay * p.JitterFraction
	}

	return time.Duration(delay)
}

// Logger returns an OnRetry callback that logs each retry with the service
// and operation names.
func Logger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
