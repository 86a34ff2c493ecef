package measureresult

import (
	"testing"
	"time"
)

func TestNormalizeWindow(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		start, end string
		wantFrom   string
		wantTo     string
	}{
		{"defaults", "", "", "2023-01-01", "2024-02-29"},
		{"mid-month days", "2023-03-17", "2023-05-02", "2023-03-01", "2023-05-31"},
		{"month only", "2023-02", "2023-02", "2023-02-01", "2023-02-28"},
		{"leap february", "2024-02-10", "2024-02-10", "2024-02-01", "2024-02-29"},
		{"rfc3339", "2023-06-30T23:59:59-04:00", "2023-07-01T00:00:00Z", "2023-06-01", "2023-07-31"},
		{"invalid falls back", "yesterday", "2023-02-30", "2023-01-01", "2024-02-29"},
		{"whitespace", "  2023-04-09 ", "", "2023-04-01", "2024-02-29"},
		{"december end", "", "2023-12-05", "2023-01-01", "2023-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := normalizeWindow(tt.start, tt.end, now)
			if got := from.Format(dateLayout); got != tt.wantFrom {
				t.Errorf("from: expected %s, got %s", tt.wantFrom, got)
			}
			if got := to.Format(dateLayout); got != tt.wantTo {
				t.Errorf("to: expected %s, got %s", tt.wantTo, got)
			}
			if from.Day() != 1 {
				t.Errorf("start must be the first of a month, got %v", from)
			}
			if to.AddDate(0, 0, 1).Day() != 1 {
				t.Errorf("end must be the last day of a month, got %v", to)
			}
		})
	}
}

func TestDefaultsInJanuary(t *testing.T) {
	now := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)
	from, to := normalizeWindow("", "", now)
	if from.Format(dateLayout) != "2023-01-01" {
		t.Errorf("unexpected default start %v", from)
	}
	if to.Format(dateLayout) != "2023-12-31" {
		t.Errorf("unexpected default end %v", to)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		num, den int64
		want     float64
	}{
		{15, 30, 50},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 32, 3.13},
		{1, 8, 12.5},
		{0, 5, 0},
		{5, 5, 100},
		{7, 5, 100},
		{-1, 5, 0},
		{999999, 1000000, 100},
		{1, 200000, 0},
		{1, 20000, 0.01},
	}
	for _, tt := range tests {
		if got := Percent(tt.num, tt.den); got != tt.want {
			t.Errorf("Percent(%d, %d) = %v, want %v", tt.num, tt.den, got, tt.want)
		}
	}
}

func TestNewCell_ZeroDenominator(t *testing.T) {
	c := newCell(3, 0)
	if c.Pct != nil {
		t.Errorf("expected nil pct, got %v", *c.Pct)
	}
	if c.Numerator != 3 {
		t.Errorf("numerator must be kept, got %d", c.Numerator)
	}
}

func TestMonthsBetween(t *testing.T) {
	d := func(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		from, to time.Time
		want     int
	}{
		{d(2023, time.January), d(2024, time.March), 14},
		{d(2024, time.March), d(2024, time.March), 0},
		{d(2024, time.May), d(2024, time.March), 0},
		{d(2023, time.December), d(2024, time.January), 1},
	}
	for _, tt := range tests {
		if got := monthsBetween(tt.from, tt.to); got != tt.want {
			t.Errorf("monthsBetween(%v, %v) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}
