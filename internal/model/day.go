// Package model defines the core data structures for the burnup application.
package model

import (
	"fmt"
	"time"
)

// DayLayout is the storage and configuration format of a calendar day.
const DayLayout = "2006-01-02"

// DayOf truncates t to midnight UTC of its calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AsOf returns the exclusive upper bound for events belonging to day:
// midnight at the end of the day.
func AsOf(day time.Time) time.Time {
	return DayOf(day).AddDate(0, 0, 1)
}

// ParseDay parses a YYYY-MM-DD string into a UTC day.
func ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return d, nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(day time.Time) string {
	return DayOf(day).Format(DayLayout)
}

// StartOfQuarter returns the first day of the calendar quarter containing day.
func StartOfQuarter(day time.Time) time.Time {
	day = DayOf(day)
	month := ((day.Month()-1)/3)*3 + 1
	return time.Date(day.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

// Days returns every day from start to end inclusive.
func Days(start, end time.Time) []time.Time {
	start, end = DayOf(start), DayOf(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
