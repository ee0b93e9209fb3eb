package availability

import (
	"fmt"
	"slices"
	"time"

	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// DayInput adds one working range to the weekday of Date and sets the doctor's
// slot duration and capacity.
type DayInput struct {
	Date            string
	StartTime       string
	EndTime         string
	DurationMinutes int
	SessionCapacity int
}

// ExceptionInput describes a break or block to add.
type ExceptionInput struct {
	Start  time.Time
	End    time.Time
	Reason string
}

// Config replaces the doctor's whole availability.
type Config struct {
	DurationMinutes int
	SessionCapacity int
	Timezone        string
	WeeklyHours     map[string][]schedule.Range
	Breaks          []ExceptionInput
	Blocks          []ExceptionInput
}

func validateDuration(minutes int) error {
	if minutes <= 0 {
		return invalid("duration_minutes", "must be positive")
	}
	if !slices.Contains(AllowedDurations, minutes) {
		return invalid("duration_minutes", "must be one of %v", AllowedDurations)
	}
	return nil
}

func validateCapacity(capacity int) error {
	if capacity < 1 {
		return invalid("session_capacity", "must be at least 1")
	}
	return nil
}

func validateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return invalid("timezone", "unknown zone %q", tz)
	}
	return nil
}

func validateRange(field string, r schedule.Range) error {
	if _, err := schedule.ToMinutes(r.Start); err != nil {
		return invalid(field+".start", "must be HH:MM")
	}
	if _, err := schedule.ToMinutes(r.End); err != nil {
		return invalid(field+".end", "must be HH:MM")
	}
	if r.Start >= r.End {
		return invalid(field, "start %s must be before end %s", r.Start, r.End)
	}
	return nil
}

// checkNoOverlap reports the first pair of overlapping ranges. Identical
// ranges count as overlapping.
func checkNoOverlap(field string, ranges []schedule.Range) error {
	for i := range ranges {
		aStart, aEnd, err := ranges[i].Bounds()
		if err != nil {
			return invalid(field, "%v", err)
		}
		for j := i + 1; j < len(ranges); j++ {
			bStart, bEnd, err := ranges[j].Bounds()
			if err != nil {
				return invalid(field, "%v", err)
			}
			if schedule.RangesOverlap(aStart, aEnd, bStart, bEnd) {
				return invalid(field, "range %s overlaps %s", ranges[i], ranges[j])
			}
		}
	}
	return nil
}

func validateException(field string, in ExceptionInput) error {
	if in.Start.IsZero() {
		return invalid(field+".start", "is required")
	}
	if in.End.IsZero() {
		return invalid(field+".end", "is required")
	}
	if !in.Start.Before(in.End) {
		return invalid(field, "start must be before end")
	}
	return nil
}

func (in DayInput) validate() error {
	if _, err := schedule.ParseDate(in.Date); err != nil {
		return invalid("date", "must be YYYY-MM-DD")
	}
	if err := validateRange("time", schedule.Range{Start: in.StartTime, End: in.EndTime}); err != nil {
		return err
	}
	if err := validateDuration(in.DurationMinutes); err != nil {
		return err
	}
	return validateCapacity(in.SessionCapacity)
}

func (c Config) weeklyHours() (map[schedule.Weekday][]schedule.Range, error) {
	out := make(map[schedule.Weekday][]schedule.Range, len(c.WeeklyHours))
	for key, ranges := range c.WeeklyHours {
		day, err := schedule.ParseWeekday(key)
		if err != nil {
			return nil, invalid("weekly_hours", "unknown weekday %q", key)
		}
		field := fmt.Sprintf("weekly_hours.%s", day)
		for i, r := range ranges {
			if err := validateRange(fmt.Sprintf("%s[%d]", field, i), r); err != nil {
				return nil, err
			}
		}
		sorted := append(out[day], ranges...)
		sortRanges(sorted)
		if err := checkNoOverlap(field, sorted); err != nil {
			return nil, err
		}
		out[day] = sorted
	}
	return out, nil
}

func (c Config) validate() error {
	if err := validateDuration(c.DurationMinutes); err != nil {
		return err
	}
	if err := validateCapacity(c.SessionCapacity); err != nil {
		return err
	}
	if err := validateTimezone(c.Timezone); err != nil {
		return err
	}
	for i, b := range c.Breaks {
		if err := validateException(fmt.Sprintf("breaks[%d]", i), b); err != nil {
			return err
		}
	}
	for i, b := range c.Blocks {
		if err := validateException(fmt.Sprintf("blocks[%d]", i), b); err != nil {
			return err
		}
	}
	return nil
}
