package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// nullTokens are cell values that spreadsheets and exports use for "empty".
var nullTokens = map[string]struct{}{
	"":     {},
	"-":    {},
	"nan":  {},
	"nat":  {},
	"none": {},
	"null": {},
	"n/a":  {},
}

// Date is a civil calendar date with no time of day and no zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the Date for the given year, month and day. Out-of-range
// values are normalised the way time.Date does (Feb 30 → Mar 2).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), time.UTC)
}

// DateOf returns the civil date of t as observed in loc. A nil loc means UTC.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses s with the supported layouts. It returns nil for empty
// cells, null tokens and anything it cannot parse.
func ParseDate(s string) *Date {
	s = strings.TrimSpace(s)
	if _, ok := nullTokens[strings.ToLower(s)]; ok {
		return nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// Timestamps keep the calendar day they were written with.
		d := Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
		return &d
	}
	return nil
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// DaysUntil returns the number of calendar days from d to other.
// Positive when other is after d.
func (d Date) DaysUntil(other Date) int {
	// Both operands are UTC midnights, so the difference is whole days.
	// Unix seconds rather than Sub: a Duration saturates after ~292 years.
	return int((other.Time().Unix() - d.Time().Unix()) / secondsPerDay)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n), time.UTC)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Time().After(other.Time()) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int { return d.Time().Compare(other.Time()) }

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes d as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD".
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("types: invalid date %q: %w", s, err)
	}
	*d = Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
	return nil
}

// DaysBetween returns to − from in days, or nil when either side is absent.
func DaysBetween(from, to *Date) *int {
	if from == nil || to == nil {
		return nil
	}
	n := from.DaysUntil(*to)
	return &n
}
