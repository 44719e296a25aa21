package quota

import (
	"testing"
	"time"
)

func TestTryConsumeUpToLimit(t *testing.T) {
	tr := New(3)

	for i := 0; i < 3; i++ {
		if !tr.TryConsume() {
			t.Fatalf("consume %d: expected true", i+1)
		}
	}
	if tr.TryConsume() {
		t.Error("expected false after limit reached")
	}
	if tr.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", tr.Remaining())
	}
	if tr.Consumed() != 3 {
		t.Errorf("expected 3 consumed, got %d", tr.Consumed())
	}

	// A refused consume must not move the counter.
	if tr.TryConsume() {
		t.Error("expected false on repeat consume past limit")
	}
	if tr.Consumed() != 3 {
		t.Errorf("refused consume changed counter: %d", tr.Consumed())
	}
}

func TestZeroLimit(t *testing.T) {
	tr := New(0)
	if tr.TryConsume() {
		t.Error("zero-limit tracker should never consume")
	}
}

func TestNoRolloverByDefault(t *testing.T) {
	now := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	tr := New(1, WithClock(func() time.Time { return now }))

	if !tr.TryConsume() {
		t.Fatal("first consume should succeed")
	}

	// Cross a month boundary; without a rollover policy nothing resets.
	now = now.Add(48 * time.Hour)
	if tr.TryConsume() {
		t.Error("counter reset without a rollover policy")
	}
}

func TestMonthlyRollover(t *testing.T) {
	now := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	tr := New(1, WithRollover(RolloverMonthly), WithClock(func() time.Time { return now }))

	if !tr.TryConsume() {
		t.Fatal("first consume should succeed")
	}
	if tr.TryConsume() {
		t.Fatal("limit should be exhausted")
	}

	now = time.Date(2026, 2, 1, 0, 0, 1, 0, time.UTC)
	if tr.Remaining() != 1 {
		t.Errorf("expected full limit after month rollover, got %d remaining", tr.Remaining())
	}
	if !tr.TryConsume() {
		t.Error("expected consume to succeed after rollover")
	}
}

func TestDailyRollover(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tr := New(2, WithRollover(RolloverDaily), WithClock(func() time.Time { return now }))

	tr.TryConsume()
	tr.TryConsume()
	if tr.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", tr.Remaining())
	}

	now = now.Add(13 * time.Hour) // past midnight UTC
	st := tr.Status()
	if st.Consumed != 0 {
		t.Errorf("expected consumed reset, got %d", st.Consumed)
	}
	if !st.PeriodStart.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected period start %v", st.PeriodStart)
	}
}

func TestParseRollover(t *testing.T) {
	cases := map[string]Rollover{
		"none":    RolloverNone,
		"":        RolloverNone,
		"daily":   RolloverDaily,
		"monthly": RolloverMonthly,
	}
	for in, want := range cases {
		if got := ParseRollover(in); got != want {
			t.Errorf("ParseRollover(%q) = %v, want %v", in, got, want)
		}
	}
}
