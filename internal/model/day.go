// Package model defines the core data types shared across the service:
// calendar days, upstream datasets and column selectors.
package model

import (
	"fmt"
	"time"
)

// dayFormat is the ISO date layout used everywhere a day crosses a
// boundary (cache keys, upstream parameters, JSON payloads).
const dayFormat = "2006-01-02"

// Day is a calendar day with no time-of-day component. Equality and
// ordering are calendar-date based: two Days compare equal when their
// formatted ISO dates match, regardless of how the source timestamps
// were represented. The zero Day means "unbounded" wherever a range
// bound is optional.
type Day struct {
	t time.Time
}

// ParseDay parses an ISO date ("2006-01-02") into a Day.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day{t: t}, nil
}

// MustDay is ParseDay for hardcoded dates; it panics on a bad literal.
func MustDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DayOf truncates a timestamp to its calendar day in the timestamp's
// own location.
func DayOf(t time.Time) Day {
	day, _ := ParseDay(t.Format(dayFormat))
	return day
}

// IsZero reports whether the day is the unbounded sentinel.
func (d Day) IsZero() bool { return d.t.IsZero() }

// String returns the ISO date.
func (d Day) String() string { return d.t.Format(dayFormat) }

// Equal compares by formatted date.
func (d Day) Equal(o Day) bool { return d.String() == o.String() }

// Before compares by formatted date. ISO dates sort lexically, so a
// plain string comparison is the calendar ordering.
func (d Day) Before(o Day) bool { return d.String() < o.String() }

// After compares by formatted date.
func (d Day) After(o Day) bool { return d.String() > o.String() }

// Next returns the following calendar day.
func (d Day) Next() Day { return d.AddDays(1) }

// AddDays returns the day n calendar days later (earlier for negative n).
func (d Day) AddDays(n int) Day {
	return Day{t: d.t.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to o. It is
// negative when o precedes d and zero for the same day.
func (d Day) DaysUntil(o Day) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

// MarshalJSON encodes the day as a quoted ISO date, or null when
// unbounded.
func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted ISO date or null.
func (d *Day) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Day{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("day: invalid JSON value %s", s)
	}
	day, err := ParseDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = day
	return nil
}
