package relay

import "time"

// Clock supplies the wall-clock time expiry decisions are measured
// against. The listener takes a Clock so tests can pin "now" and exercise
// the expiry boundary exactly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
