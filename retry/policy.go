package retry

import (
	"fmt"
	"time"

	"github.com/poiesic/scriptorium/core"
)

// Policy configures an Executor.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter spreads each delay uniformly by up to this fraction, in [0, 1].
	Jitter float64
	// Retryable decides whether a classified error may be retried.
	// Defaults to core.IsRetryable.
	Retryable func(error) bool
}

// DefaultPolicy returns three attempts starting at half a second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
		Retryable:   core.IsRetryable,
	}
}

// Validate checks the policy for values the executor cannot honor.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidPolicy)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("%w: max delay %s is below base delay %s", ErrInvalidPolicy, p.MaxDelay, p.BaseDelay)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("%w: jitter must be within [0, 1], got %v", ErrInvalidPolicy, p.Jitter)
	}
	return nil
}

// Delay returns the wait after the given failed attempt (1-based) before
// jitter is applied.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		delay *= 2
	}
	return min(delay, p.MaxDelay)
}
