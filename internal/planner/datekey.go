package planner

import (
	"fmt"
	"time"
)

// DateKeyLayout is the canonical YYYY-MM-DD key format used in the plan store.
const DateKeyLayout = "2006-01-02"

// ToLocalDateKey formats the date key from the calendar fields of t in its
// own location.
func ToLocalDateKey(t time.Time) string {
	year, month, day := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// ToUTCDateKey formats the date key from the UTC calendar fields of t. Some
// historical plan values were written under UTC key assumptions, so reads
// have to check this derivation too.
func ToUTCDateKey(t time.Time) string {
	return ToLocalDateKey(t.UTC())
}

// AddDays returns t shifted by n calendar days, leaving t untouched.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// NextNDays returns start and the following n-1 calendar days.
func NextNDays(start time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, AddDays(start, i))
	}
	return days
}

// ParseDateKey parses a YYYY-MM-DD key into a local-midnight time.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DateKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", key, err)
	}
	return t, nil
}
