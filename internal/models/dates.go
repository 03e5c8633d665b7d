package models

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Day normalises an instant to its calendar day stored as midnight UTC.
// The calendar day is taken in t's own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today is the club-local calendar day of t.
func Today(t time.Time, loc *time.Location) time.Time {
	return Day(t.In(loc))
}

// ParseDay parses "2006-01-02" into a calendar day.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// ParseClock validates an "HH:MM" wall-clock value and returns minutes since midnight.
func ParseClock(s string) (int, error) {
	c, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return c.Hour()*60 + c.Minute(), nil
}

// At combines a calendar day and an "HH:MM" clock in loc.
// Unparseable clocks resolve to midnight.
func At(day time.Time, clock string, loc *time.Location) time.Time {
	mins, _ := ParseClock(clock)
	return time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, loc)
}

// DaysBetween counts calendar days in the inclusive range [from, to].
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours()/24) + 1
}
