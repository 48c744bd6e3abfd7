// Package clock abstracts "now" so lifecycle rules can be evaluated against a
// fixed date in tests and against the configured business time zone in production.
package clock

import "time"

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in Location (time.Local when nil).
type System struct {
	Location *time.Location
}

// Now implements Clock.
func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

type fixed time.Time

func (f fixed) Now() time.Time { return time.Time(f) }

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock { return fixed(t) }

// Day returns the calendar date of t (in t's own location) as midnight UTC.
// Dates are compared as civil days so a time zone offset can never move a
// due date across midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is Day(c.Now()).
func Today(c Clock) time.Time {
	return Day(c.Now())
}

// Date builds a civil date at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
