package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// Terminal builds the error returned once all attempts are spent.
	// It receives the error of the last attempt with the Again tag removed.
	Terminal func(last error) error
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// Do executes the operation until it returns nil, a non-retryable error,
// or the attempt budget is exhausted.
//
// Errors wrapped with Again() are retried after the configured delay. Any other
// error is returned as-is on its first occurrence. Context cancellation is
// respected between attempts.
func Do(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		MaxAttempts: 3,
		Delay:       1 * time.Second,
		Multiplier:  1.0,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.Delay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var again *againError
		if !errors.As(err, &again) {
			return err
		}
		lastErr = again.Err

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	if cfg.Terminal != nil {
		return cfg.Terminal(lastErr)
	}
	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// Attempts returns the attempt count that keeps trying for roughly budget,
// pausing interval between attempts. It never returns less than one.
func Attempts(budget, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int(budget / interval)
	if n < 1 {
		return 1
	}
	return n
}

// WithMaxAttempts sets the total number of attempts, including the first one.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// WithDelay sets the delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(c *Config) {
		c.Delay = d
	}
}

// WithMaxDelay caps the delay when a multiplier is in use.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier. The default of 1 keeps the delay fixed.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		c.Multiplier = m
	}
}

// WithTerminal sets the function producing the error returned on exhaustion.
func WithTerminal(fn func(last error) error) Option {
	return func(c *Config) {
		c.Terminal = fn
	}
}

// againError tags an error as a request for another attempt.
type againError struct {
	Err error
}

func (e *againError) Error() string {
	if e.Err == nil {
		return "retry requested"
	}
	return e.Err.Error()
}

func (e *againError) Unwrap() error {
	return e.Err
}

// Again marks err as retryable. A nil err still requests a retry.
func Again(err error) error {
	return &againError{Err: err}
}

// IsAgain checks if an error was tagged with Again.
func IsAgain(err error) bool {
	var again *againError
	return errors.As(err, &again)
}

// FatalError wraps an error to mark it as fatal inside loops that otherwise
// treat every failure as transient.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}

// Transient adapts an operation whose every error is worth retrying unless it
// was marked Fatal. Errors already tagged with Again pass through as they are.
func Transient(operation func() error) func() error {
	return func() error {
		err := operation()
		if err == nil || IsFatal(err) || IsAgain(err) {
			return err
		}
		return Again(err)
	}
}
