package monthkey

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format returns a month key like "2025-01".
func Format(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// Parse parses "2025-01" into the first day of that month (UTC).
func Parse(key string) (time.Time, error) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid month key format: %q", key)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year in month key %q: %w", key, err)
	}

	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month in month key %q: %w", key, err)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range in month key %q", month, key)
	}

	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// Index returns a month's position on a continuous month axis
// (year*12 + month), so that the difference of two indexes is the number
// of calendar months between them.
func Index(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}

