// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/poiesic/scriptorium/core"
)

// Outcome is the typed result of one attempt or of a whole Do call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeTransient
	OutcomePermanent
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Event describes a single attempt.
type Event struct {
	Operation string
	Attempt   int
	Outcome   Outcome
	Latency   time.Duration
	// Delay is the backoff scheduled after this attempt, zero when none follows.
	Delay time.Duration
	Err   error
}

// Observer receives one Event per attempt.
type Observer interface {
	ObserveAttempt(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// ObserveAttempt calls f(e).
func (f ObserverFunc) ObserveAttempt(e Event) { f(e) }

type noopObserver struct{}

func (noopObserver) ObserveAttempt(Event) {}

// Result summarizes a Do call.
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
}

// Executor runs operations under a Policy.
type Executor struct {
	policy   Policy
	observer Observer
	logger   *slog.Logger
	jitter   func() float64
}

// Option configures an Executor.
type Option func(*Executor) error

// WithLogger sets a custom logger for the executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithObserver sets the attempt observer. Nil restores the no-op observer.
func WithObserver(observer Observer) Option {
	return func(e *Executor) error {
		if observer == nil {
			observer = noopObserver{}
		}
		e.observer = observer
		return nil
	}
}

// New creates an Executor for the given policy.
func New(policy Policy, opts ...Option) (*Executor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.Retryable == nil {
		policy.Retryable = core.IsRetryable
	}
	e := &Executor{
		policy:   policy,
		observer: noopObserver{},
		logger:   slog.Default(),
		jitter:   rand.Float64,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "retry")
	return e, nil
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out of
// attempts or ctx is cancelled. A nil error means OutcomeSuccess. Otherwise
// the error is classified: it wraps core.ErrCancelled for OutcomeCancelled,
// and core.ErrTransient or core.ErrPermanent for failures.
func (e *Executor) Do(ctx context.Context, operation string, fn func(context.Context) error) (Result, error) {
	began := time.Now()
	result := Result{}
	finish := func(outcome Outcome, err error) (Result, error) {
		result.Outcome = outcome
		result.Elapsed = time.Since(began)
		return result, err
	}

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return finish(OutcomeCancelled, fmt.Errorf("%w: %s before attempt %d: %w", core.ErrCancelled, operation, attempt, err))
		}

		result.Attempts = attempt
		start := time.Now()
		err := fn(ctx)
		event := Event{Operation: operation, Attempt: attempt, Latency: time.Since(start)}

		if err == nil {
			event.Outcome = OutcomeSuccess
			e.observe(event)
			return finish(OutcomeSuccess, nil)
		}

		if ctx.Err() != nil && !errors.Is(err, core.ErrCancelled) {
			err = fmt.Errorf("%w: %w", core.ErrCancelled, err)
		}
		err = core.Classify(err)
		event.Err = err

		switch {
		case errors.Is(err, core.ErrCancelled):
			event.Outcome = OutcomeCancelled
			e.observe(event)
			return finish(OutcomeCancelled, err)
		case !e.policy.Retryable(err):
			event.Outcome = OutcomePermanent
			e.observe(event)
			return finish(OutcomePermanent, err)
		}

		event.Outcome = OutcomeTransient
		if attempt == e.policy.MaxAttempts {
			e.observe(event)
			return finish(OutcomeTransient, fmt.Errorf("%w: %s failed after %d attempts: %w", ErrExhausted, operation, attempt, err))
		}

		event.Delay = e.backoff(attempt)
		e.observe(event)

		timer := time.NewTimer(event.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return finish(OutcomeCancelled, fmt.Errorf("%w: %s during backoff: %w", core.ErrCancelled, operation, ctx.Err()))
		case <-timer.C:
		}
	}

	// MaxAttempts is validated positive, so the loop always returns.
	return finish(OutcomePermanent, fmt.Errorf("%w: %s made no attempts", ErrInvalidPolicy, operation))
}

func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.policy.Delay(attempt)
	if e.policy.Jitter == 0 || delay == 0 {
		return delay
	}
	spread := 1 + e.policy.Jitter*(2*e.jitter()-1)
	return min(time.Duration(float64(delay)*spread), e.policy.MaxDelay)
}

func (e *Executor) observe(event Event) {
	level := slog.LevelDebug
	if event.Outcome != OutcomeSuccess && event.Delay == 0 {
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, "attempt finished",
		"operation", event.Operation,
		"attempt", event.Attempt,
		"outcome", event.Outcome.String(),
		"latency", event.Latency,
		"delay", event.Delay,
		"error", event.Err)
	e.observer.ObserveAttempt(event)
}
