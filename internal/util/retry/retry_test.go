package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDo_Success(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	err := Do(context.Background(), operation)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return Again(errors.New("not finished"))
		}
		return nil
	}

	err := Do(context.Background(), operation,
		WithMaxAttempts(5),
		WithDelay(10*time.Millisecond))

	if err != nil {
		t.Errorf("Expected no error after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestDo_NonMatchingErrorPropagatesImmediately(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("boom")
	attempts := 0
	operation := func() error {
		attempts++
		return sentinel
	}

	err := Do(context.Background(), operation,
		WithMaxAttempts(5),
		WithDelay(10*time.Millisecond),
		WithTerminal(func(error) error { return errors.New("terminal") }))

	if !errors.Is(err, sentinel) {
		t.Errorf("Expected sentinel error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_Exhausted(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return Again(errors.New("still running"))
	}

	err := Do(context.Background(), operation,
		WithMaxAttempts(4),
		WithDelay(5*time.Millisecond))

	if err == nil {
		t.Fatal("Expected error after exhausting attempts, got nil")
	}
	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got: %d", attempts)
	}
	if IsAgain(err) {
		t.Errorf("Exhaustion error should not carry the retry tag: %v", err)
	}
}

func TestDo_TerminalError(t *testing.T) {
	t.Parallel()
	terminal := errors.New("timed out")
	var seen error

	err := Do(context.Background(), func() error {
		return Again(errors.New("last attempt"))
	},
		WithMaxAttempts(2),
		WithDelay(time.Millisecond),
		WithTerminal(func(last error) error {
			seen = last
			return terminal
		}))

	if !errors.Is(err, terminal) {
		t.Errorf("Expected terminal error, got: %v", err)
	}
	if seen == nil || seen.Error() != "last attempt" {
		t.Errorf("Expected terminal func to receive last error, got: %v", seen)
	}
}

func TestDo_AgainWithNilError(t *testing.T) {
	t.Parallel()
	attempts := 0

	err := Do(context.Background(), func() error {
		attempts++
		if attempts == 1 {
			return Again(nil)
		}
		return nil
	}, WithDelay(time.Millisecond))

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return Again(errors.New("error"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, operation, WithMaxAttempts(5), WithDelay(10*time.Millisecond))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before context check, got: %d", attempts)
	}
}

func TestDo_BackoffGrowth(t *testing.T) {
	t.Parallel()
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	operation := func() error {
		attempts++
		now := time.Now()
		if attempts > 1 {
			delays = append(delays, now.Sub(lastTime))
		}
		lastTime = now
		if attempts < 4 {
			return Again(errors.New("error"))
		}
		return nil
	}

	err := Do(context.Background(), operation,
		WithMaxAttempts(5),
		WithDelay(20*time.Millisecond),
		WithMultiplier(2),
		WithMaxDelay(50*time.Millisecond))

	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}
	if len(delays) != 3 {
		t.Fatalf("Expected 3 delays, got: %d", len(delays))
	}
	if delays[2] < 45*time.Millisecond {
		t.Errorf("Expected third delay to be capped near 50ms, got %v", delays[2])
	}
}

func TestAttempts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		budget, interval time.Duration
		want             int
	}{
		{60 * time.Second, 2 * time.Second, 30},
		{120 * time.Second, 2 * time.Second, 60},
		{time.Second, 2 * time.Second, 1},
		{time.Minute, 0, 1},
	}
	for _, tt := range tests {
		if got := Attempts(tt.budget, tt.interval); got != tt.want {
			t.Errorf("Attempts(%v, %v) = %d, want %d", tt.budget, tt.interval, got, tt.want)
		}
	}
}

func TestFatal(t *testing.T) {
	t.Parallel()
	if Fatal(nil) != nil {
		t.Error("Expected nil for Fatal(nil)")
	}

	sentinel := errors.New("sentinel error")
	wrapped := fmt.Errorf("context: %w", Fatal(sentinel))
	if !IsFatal(wrapped) {
		t.Error("IsFatal should detect FatalError through fmt.Errorf wrapping")
	}
	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should find sentinel through FatalError.Unwrap()")
	}
}

func TestTransient(t *testing.T) {
	t.Parallel()
	attempts := 0
	dialErr := errors.New("connection refused")

	err := Do(context.Background(), Transient(func() error {
		attempts++
		if attempts < 3 {
			return dialErr
		}
		return Fatal(errors.New("auth failed"))
	}), WithMaxAttempts(10), WithDelay(time.Millisecond))

	if !IsFatal(err) {
		t.Errorf("Expected fatal error to stop retrying, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestTransient_KeepsExistingTag(t *testing.T) {
	t.Parallel()
	busy := errors.New("resource busy")
	var last error

	err := Do(context.Background(), Transient(func() error {
		return Again(busy)
	}), WithMaxAttempts(2), WithDelay(time.Millisecond),
		WithTerminal(func(err error) error {
			last = err
			return err
		}))

	if !errors.Is(err, busy) {
		t.Errorf("Expected busy error, got: %v", err)
	}
	if last != busy {
		t.Errorf("Terminal func should receive the untagged error, got: %#v", last)
	}
}
