package session

import "time"

// Policy is a flood-control rule: at most Limit actions inside a Window;
// reaching the limit suppresses the action for Duration.
type Policy struct {
	Limit    int
	Window   time.Duration
	Duration time.Duration
}

// Enabled reports whether the policy limits anything at all.
func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// Throttle is one sliding-window flood counter. It is not safe for
// concurrent use; the owning Session serializes access under its lock.
type Throttle struct {
	Policy Policy

	count          int
	windowStart    time.Time
	throttledUntil time.Time
}

// Increment records one action attempt at the given instant and reports
// whether the action may proceed. The throttled check happens before the
// increment, and the counter keeps advancing while throttled, so continued
// abuse extends rather than resets the suppression.
func (t *Throttle) Increment(now time.Time) bool {
	if !t.Policy.Enabled() {
		return true
	}
	allowed := !t.Throttled(now)
	if t.windowStart.IsZero() || now.Sub(t.windowStart) > t.Policy.Window {
		t.count = 0
		t.windowStart = now
	}
	t.count++
	if t.count >= t.Policy.Limit {
		t.throttledUntil = now.Add(t.Policy.Duration)
	}
	return allowed
}

// Throttled reports whether the action is currently suppressed.
func (t *Throttle) Throttled(now time.Time) bool {
	return now.Before(t.throttledUntil)
}

// Reset clears all counter state, for slot reuse.
func (t *Throttle) Reset() {
	t.count = 0
	t.windowStart = time.Time{}
	t.throttledUntil = time.Time{}
}
