// Package schedule holds the pure time arithmetic used by the booking engine:
// "HH:MM" clock values, naive UTC dates and fixed-duration slot expansion.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	MinutesPerDay = 24 * 60
)

var ErrInvalidFormat = errors.New("invalid format")

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ToMinutes parses "HH:MM" into minutes since midnight.
func ToMinutes(hhmm string) (int, error) {
	m := clockPattern.FindStringSubmatch(hhmm)
	if m == nil {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidFormat, hhmm)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, nil
}

// ToHHMM is the inverse of ToMinutes.
func ToHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// RangesOverlap reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect.
func RangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// TimesOverlap is RangesOverlap for instants.
func TimesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ParseDate parses a "YYYY-MM-DD" date as midnight UTC.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidFormat, date)
	}
	return t, nil
}

// At combines a date and a clock value into a UTC instant. Callers own any
// conversion to the clinic's local time.
func At(date, hhmm string) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := ToMinutes(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(minutes) * time.Minute), nil
}

// Range is one working-hour interval on a weekday, [Start, End).
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Bounds returns the range in minutes and checks Start < End.
func (r Range) Bounds() (start, end int, err error) {
	if start, err = ToMinutes(r.Start); err != nil {
		return 0, 0, err
	}
	if end, err = ToMinutes(r.End); err != nil {
		return 0, 0, err
	}
	if start >= end {
		return 0, 0, fmt.Errorf("%w: range start %s must be before end %s", ErrInvalidFormat, r.Start, r.End)
	}
	return start, end, nil
}

// Contains reports Start <= hhmm < End. Malformed input never matches.
func (r Range) Contains(hhmm string) bool {
	start, end, err := r.Bounds()
	if err != nil {
		return false
	}
	t, err := ToMinutes(hhmm)
	if err != nil {
		return false
	}
	return start <= t && t < end
}

func (r Range) String() string {
	return r.Start + "-" + r.End
}
