package pipeline

import "time"

// Budget is the wall-clock allowance of one ingestion. Its checks are pure
// functions of the deadline and the injected clock.
type Budget struct {
	deadline time.Time
	now      func() time.Time
}

// NewBudget returns a budget ending total after now().
func NewBudget(total time.Duration, now func() time.Time) Budget {
	if now == nil {
		now = time.Now
	}
	return Budget{deadline: now().Add(total), now: now}
}

// Deadline is the absolute end of the budget.
func (b Budget) Deadline() time.Time { return b.deadline }

// Remaining returns the time left, never negative.
func (b Budget) Remaining() time.Duration {
	return max(b.deadline.Sub(b.now()), 0)
}

// Allows reports whether a stage needing reserve may start.
func (b Budget) Allows(reserve time.Duration) bool {
	return b.Remaining() >= reserve
}
