package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/visiongate/visiongate/pkg/retry"
)

func noSleep(delays *[]time.Duration) *retry.Executor {
	return retry.New(retry.WithSleep(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}))
}

func TestCheckSucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	calls := 0
	ok := CheckWith(context.Background(), noSleep(&delays), retry.Default(),
		func(context.Context) error {
			calls++
			return nil
		})
	if !ok {
		t.Fatal("expected probe success")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
	if len(delays) != 0 {
		t.Errorf("expected no backoff, got %v", delays)
	}
}

func TestCheckRecoversAfterFailures(t *testing.T) {
	var delays []time.Duration
	calls := 0
	ok := CheckWith(context.Background(), noSleep(&delays), retry.Default(),
		func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("unreachable")
			}
			return nil
		})
	if !ok {
		t.Fatal("expected probe success on the final attempt")
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) || delays[0] != want[0] || delays[1] != want[1] {
		t.Errorf("unexpected backoff sequence %v", delays)
	}
}

func TestCheckExhausted(t *testing.T) {
	var delays []time.Duration
	calls := 0
	ok := CheckWith(context.Background(), noSleep(&delays), retry.Default(),
		func(context.Context) error {
			calls++
			return errors.New("unreachable")
		})
	if ok {
		t.Fatal("expected probe failure")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}
