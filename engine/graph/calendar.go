package graph

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a civil date without a time zone.
type Date struct {
	t time.Time
}

// NewDate returns the date year-month-day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the civil date of t in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO 8601 date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string { return d.t.Format(dateLayout) }

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Departure is the scheduled time a service relationship leaves, measured
// from midnight of the service date. DayOffset is 1 for the after-midnight
// part of a service that started the previous day.
type Departure struct {
	Minutes   int
	DayOffset int
}

// Offset returns the departure as a duration since midnight of the service date.
func (d Departure) Offset() time.Duration {
	return time.Duration(d.DayOffset)*24*time.Hour + time.Duration(d.Minutes)*time.Minute
}

func (d Departure) String() string {
	s := fmt.Sprintf("%02d:%02d", d.Minutes/60, d.Minutes%60)
	if d.DayOffset > 0 {
		s += fmt.Sprintf("+%d", d.DayOffset)
	}
	return s
}

// DateRange is an inclusive range of dates.
type DateRange struct {
	Start Date
	End   Date
}

// Contains reports whether date lies within the range.
func (r DateRange) Contains(date Date) bool {
	return !date.Before(r.Start) && !date.After(r.End)
}

// Calendar describes on which dates a service operates.
type Calendar struct {
	Range DateRange
	// Days holds one flag per weekday, Monday first.
	Days    [7]bool
	Added   []Date
	Removed []Date
}

// ParseDays parses a seven character Monday-first mask such as "1111100".
func ParseDays(mask string) ([7]bool, error) {
	var days [7]bool
	if len(mask) != 7 {
		return days, fmt.Errorf("days mask %q: want 7 characters", mask)
	}
	for i, c := range mask {
		switch c {
		case '1':
			days[i] = true
		case '0':
		default:
			return days, fmt.Errorf("days mask %q: invalid character %q", mask, c)
		}
	}
	return days, nil
}

// OperatesOn reports whether the calendar runs on date.
func (c Calendar) OperatesOn(date Date) bool {
	for _, r := range c.Removed {
		if r.Equal(date) {
			return false
		}
	}
	for _, a := range c.Added {
		if a.Equal(date) {
			return true
		}
	}
	if !c.Range.Contains(date) {
		return false
	}
	// time.Weekday is Sunday first.
	idx := (int(date.Weekday()) + 6) % 7
	return c.Days[idx]
}
