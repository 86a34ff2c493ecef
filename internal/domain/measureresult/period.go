package measureresult

import (
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

var acceptedLayouts = []string{dateLayout, monthLayout, time.RFC3339}

// parseDate accepts YYYY-MM-DD, YYYY-MM or RFC 3339 and returns the calendar
// date in UTC.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, -1)
}

// defaultStart is January 1st of the previous calendar year.
func defaultStart(now time.Time) time.Time {
	return time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// defaultEnd is the last day of the previous calendar month.
func defaultEnd(now time.Time) time.Time {
	return monthStart(now).AddDate(0, 0, -1)
}

// normalizeWindow turns the raw start/end inputs into an inclusive
// [first-of-month, last-of-month] range. Unparseable input gets the default.
func normalizeWindow(start, end string, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from, ok := parseDate(start)
	if !ok {
		from = defaultStart(now)
	}
	to, ok := parseDate(end)
	if !ok {
		to = defaultEnd(now)
	}
	return monthStart(from), monthEnd(to)
}

// normalizeMonth resolves a detail month, defaulting to the previous month.
func normalizeMonth(month string, now time.Time) (time.Time, time.Time) {
	t, ok := parseDate(month)
	if !ok {
		t = defaultEnd(now.UTC())
	}
	return monthStart(t), monthEnd(t)
}

// MonthKey formats the month of t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// monthsBetween counts whole months from the month of from up to, but not
// including, the month of to. It is never negative.
func monthsBetween(from, to time.Time) int {
	n := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if n < 0 {
		return 0
	}
	return n
}

// Percent returns numerator/denominator*100 rounded half up to two decimals,
// clamped to [0, 100]. The denominator must be positive.
func Percent(numerator, denominator int64) float64 {
	if numerator < 0 {
		numerator = 0
	}
	if numerator > denominator {
		numerator = denominator
	}
	hundredths := (numerator*20000 + denominator) / (2 * denominator)
	return float64(hundredths) / 100
}

func newCell(numerator, denominator int64) Cell {
	c := Cell{Numerator: numerator, Denominator: denominator}
	if denominator > 0 {
		pct := Percent(numerator, denominator)
		c.Pct = &pct
	}
	return c
}
