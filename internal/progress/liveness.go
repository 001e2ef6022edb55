package progress

import "time"

// Stale reports whether a child whose last signal landed at lastSignal
// should be treated as hung at instant now. It is a pure function so the
// supervisor's staleness decision is testable without real timers.
func Stale(now, lastSignal time.Time, threshold time.Duration) bool {
	if lastSignal.IsZero() {
		return false
	}
	return now.Sub(lastSignal) > threshold
}
