package util

import (
	"time"
)

// FirstTradingDays returns the positions in dates (ascending) of the first
// date present for each calendar month. The result depends only on the index,
// so a month whose 1st is a holiday starts on its first listed session.
func FirstTradingDays(dates []time.Time) []int {
	var out []int
	var lastY int
	var lastM time.Month
	for i, d := range dates {
		y, m, _ := d.Date()
		if i == 0 || y != lastY || m != lastM {
			out = append(out, i)
			lastY, lastM = y, m
		}
	}
	return out
}

// CoversRange reports whether the span [first, last] reaches start and end to
// within slack calendar days on each side. It tolerates weekends and holidays
// at the edges of a requested range.
func CoversRange(first, last, start, end time.Time, slack int) bool {
	if first.IsZero() || last.IsZero() {
		return false
	}
	if first.After(start.AddDate(0, 0, slack)) {
		return false
	}
	if !end.IsZero() && last.Before(end.AddDate(0, 0, -slack)) {
		return false
	}
	return true
}
