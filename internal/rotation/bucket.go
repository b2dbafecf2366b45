// Package rotation holds the pure decision logic for tiered backup retention:
// truncating timestamps into buckets, deciding when a tier needs a new
// artifact, and choosing which artifact to evict.
package rotation

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidGranularity is returned for a granularity outside day, week, month and year.
var ErrInvalidGranularity = errors.New("invalid granularity")

// Granularity is the width of a retention bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// Granularities lists every supported granularity in processing order.
var Granularities = []Granularity{Day, Week, Month, Year}

// ParseGranularity converts a tier name into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	switch g {
	case Day, Week, Month, Year:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

// Truncate rounds t down to the start of its bucket. The result keeps t's
// location; no zone conversion happens, so both sides of a comparison must
// come from the same clock.
func Truncate(t time.Time, g Granularity) (time.Time, error) {
	loc := t.Location()
	switch g {
	case Year:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc), nil
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc), nil
	case Week:
		// time.Weekday starts at Sunday; shift so Monday is 0.
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc), nil
	case Day:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidGranularity, string(g))
	}
}
