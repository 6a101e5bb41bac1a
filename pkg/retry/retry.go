package retry

import (
	"context"
	"math/rand"
	"time"

	pkgerrors "github.com/cardrail/backend/pkg/errors"
)

// Policy describes an exponential backoff schedule. The zero value is not
// usable; construct policies through DefaultPolicy or a literal with explicit
// fields.
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterPercent int
}

// DefaultPolicy returns the schedule used for transient dependency failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   4,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2,
		JitterPercent: 10,
	}
}

// Delay computes the backoff for a zero-indexed attempt, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.Multiplier
		if time.Duration(delay) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	d := time.Duration(delay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// withJitter spreads a delay by +/- half of the jitter window so concurrent
// retries do not stampede.
func (p Policy) withJitter(d time.Duration) time.Duration {
	if p.JitterPercent <= 0 {
		return d
	}
	window := float64(d) * float64(p.JitterPercent) / 100
	offset := rand.Float64()*window - window/2
	jittered := time.Duration(float64(d) + offset)
	if jittered < 0 {
		return 0
	}
	return jittered
}

// Retryable reports whether an error is worth retrying. Platform errors carry
// the decision in their metadata; unknown errors are treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if appErr := pkgerrors.As(err); appErr != nil {
		return pkgerrors.MetadataFor(appErr.Code()).Retryable
	}
	return true
}

// Do runs fn until it succeeds, the policy is exhausted, the error is
// non-retryable, or the context is cancelled. The last error is returned.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		wait := policy.withJitter(policy.Delay(attempt))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
