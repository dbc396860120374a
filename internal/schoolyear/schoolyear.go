// Package schoolyear implements the Basal school-year calendar. A school year
// runs from August 1 through July 31 and is labelled "YYYY/YY" after its
// starting calendar year, e.g. "2024/25". Every calendar date belongs to
// exactly one school year and years are totally ordered by start date.
package schoolyear

import (
	"fmt"
	"strconv"
	"time"

	appErrors "github.com/basal-program/admin-api/pkg/errors"
)

// StartMonth is the month a school year begins.
const StartMonth = time.August

// Year is a school year, identified by the calendar year it starts in.
type Year struct {
	start int
}

// FromStartYear builds a Year from its starting calendar year.
func FromStartYear(start int) Year {
	return Year{start: start}
}

// Parse accepts a school-year label in any of the supported formats
// ("2024/25", "2024-25", "2024-2025") and returns the canonical Year.
func Parse(label string) (Year, error) {
	start, ok := parseStartYear(label)
	if !ok {
		return Year{}, appErrors.Clone(appErrors.ErrInvalidYearLabel, fmt.Sprintf("invalid school year label %q", label))
	}
	return Year{start: start}, nil
}

func parseStartYear(label string) (int, bool) {
	var startPart, endPart string
	switch len(label) {
	case 7:
		// "2024/25" or "2024-25"
		if label[4] != '/' && label[4] != '-' {
			return 0, false
		}
		startPart, endPart = label[:4], label[5:]
	case 9:
		// "2024-2025"
		if label[4] != '-' {
			return 0, false
		}
		startPart, endPart = label[:4], label[5:]
	default:
		return 0, false
	}

	start, err := strconv.Atoi(startPart)
	if err != nil || start < 1000 {
		return 0, false
	}
	end, err := strconv.Atoi(endPart)
	if err != nil {
		return 0, false
	}
	if len(endPart) == 2 {
		end += (start / 100) * 100
		if end < start {
			end += 100
		}
	}
	if end != start+1 {
		return 0, false
	}
	return start, true
}

// DateOnly truncates a timestamp to its UTC calendar date. Enrollment and
// signup arithmetic operates on whole days.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ForDate returns the school year containing the given date: dates in August
// or later belong to the year starting that calendar year, earlier dates to
// the year started the calendar year before.
func ForDate(d time.Time) Year {
	if d.Month() >= StartMonth {
		return Year{start: d.Year()}
	}
	return Year{start: d.Year() - 1}
}

// Current is a convenience wrapper around ForDate for "today".
func Current(today time.Time) Year {
	return ForDate(today)
}

// StartYear returns the calendar year the school year starts in.
func (y Year) StartYear() int {
	return y.start
}

// String renders the canonical "YYYY/YY" label.
func (y Year) String() string {
	return fmt.Sprintf("%04d/%02d", y.start, (y.start+1)%100)
}

// Bounds returns the first and last date of the school year: August 1 of the
// start year and July 31 of the following calendar year, both UTC midnight.
func (y Year) Bounds() (start, end time.Time) {
	start = time.Date(y.start, StartMonth, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(y.start+1, time.July, 31, 0, 0, 0, 0, time.UTC)
	return start, end
}

// Start returns the first date of the school year.
func (y Year) Start() time.Time {
	start, _ := y.Bounds()
	return start
}

// End returns the last date of the school year.
func (y Year) End() time.Time {
	_, end := y.Bounds()
	return end
}

// Contains reports whether the date falls within the school year.
func (y Year) Contains(d time.Time) bool {
	return ForDate(d) == y
}

// Next returns the following school year.
func (y Year) Next() Year {
	return Year{start: y.start + 1}
}

// Prev returns the preceding school year.
func (y Year) Prev() Year {
	return Year{start: y.start - 1}
}

// Before reports whether y starts before other.
func (y Year) Before(other Year) bool {
	return y.start < other.start
}

// After reports whether y starts after other.
func (y Year) After(other Year) bool {
	return y.start > other.start
}

// MarshalText serializes the canonical label.
func (y Year) MarshalText() ([]byte, error) {
	return []byte(y.String()), nil
}

// UnmarshalText parses any supported label format.
func (y *Year) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*y = parsed
	return nil
}
