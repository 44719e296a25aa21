package quota

import (
	"time"

	"github.com/visiongate/visiongate/pkg/models"
)

// Rollover selects how the consumption window resets. The default,
// RolloverNone, keeps a single monotonic count for the process lifetime.
type Rollover int

const (
	RolloverNone Rollover = iota
	RolloverDaily
	RolloverMonthly
)

// String returns the config spelling of the rollover policy.
func (r Rollover) String() string {
	switch r {
	case RolloverDaily:
		return "daily"
	case RolloverMonthly:
		return "monthly"
	default:
		return "none"
	}
}

// ParseRollover maps a config string to a Rollover. Unknown values fall back
// to RolloverNone; config validation rejects them before this runs.
func ParseRollover(s string) Rollover {
	switch s {
	case "daily":
		return RolloverDaily
	case "monthly":
		return RolloverMonthly
	default:
		return RolloverNone
	}
}

// Tracker counts consumed calls against a fixed period limit.
//
// It is deliberately not safe for concurrent use: the gateway's single-flight
// guard serializes every caller, so the counter carries no lock of its own.
type Tracker struct {
	limit       int
	consumed    int
	periodStart time.Time
	rollover    Rollover
	now         func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRollover sets the period reset policy.
func WithRollover(r Rollover) Option {
	return func(t *Tracker) { t.rollover = r }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker with the given call limit.
func New(limit int, opts ...Option) *Tracker {
	t := &Tracker{
		limit: limit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.periodStart = periodStart(t.rollover, t.now().UTC())
	return t
}

// TryConsume increments the counter and returns true iff a call remains in
// the current period. A false return has no side effect.
func (t *Tracker) TryConsume() bool {
	t.maybeRoll()
	if t.consumed >= t.limit {
		return false
	}
	t.consumed++
	return true
}

// Remaining returns how many calls are left in the current period.
func (t *Tracker) Remaining() int {
	t.maybeRoll()
	return t.limit - t.consumed
}

// Consumed returns how many calls the current period has used.
func (t *Tracker) Consumed() int {
	t.maybeRoll()
	return t.consumed
}

// Status returns a snapshot of the counter.
func (t *Tracker) Status() models.QuotaStatus {
	t.maybeRoll()
	return models.QuotaStatus{
		Limit:       t.limit,
		Consumed:    t.consumed,
		Remaining:   t.limit - t.consumed,
		PeriodStart: t.periodStart,
	}
}

// maybeRoll resets the counter when the clock has crossed into a new period.
func (t *Tracker) maybeRoll() {
	if t.rollover == RolloverNone {
		return
	}
	start := periodStart(t.rollover, t.now().UTC())
	if start.After(t.periodStart) {
		t.periodStart = start
		t.consumed = 0
	}
}

func periodStart(r Rollover, now time.Time) time.Time {
	switch r {
	case RolloverMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case RolloverDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return now
	}
}
