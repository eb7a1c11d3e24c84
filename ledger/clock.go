package ledger

import "time"

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies "now" to everything in the engine that is time-sensitive:
// the generation cutoff, lateness computation, and reference-ID date stamps.
// Injecting it (instead of calling time.Now ambiently) makes fee accrual
// deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall-clock Clock used in production.
func SystemClock() Clock { return systemClock{} }

// FixedClock always returns the same instant. For tests.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// =============================================================================
// DATE HELPERS - Billing works in whole UTC days
// =============================================================================

// Date builds a UTC-midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// WholeDaysBetween returns the count of whole calendar days from one date
// to another. Negative when to precedes from.
func WholeDaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// AddMonth advances a due date by one calendar month. time.AddDate semantics
// apply: Jan 31 + 1 month normalizes to Mar 2/3. Due dates therefore drift
// on month-end anchors; kept as observed.
func AddMonth(t time.Time) time.Time {
	return t.AddDate(0, 1, 0)
}

// SamePeriod reports whether two dates fall in the same billing period
// (calendar year + month).
func SamePeriod(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
