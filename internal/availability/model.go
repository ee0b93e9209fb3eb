package availability

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

const (
	DefaultDurationMinutes = 15
	DefaultSessionCapacity = 30
)

// AllowedDurations lists the slot lengths a doctor may configure, in minutes.
var AllowedDurations = []int{5, 10, 15, 20, 30, 45, 60}

// Exception is a break (partial-day) or a block (full-day) on the calendar.
type Exception struct {
	ID     uuid.UUID `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason,omitempty"`
}

// Availability is the per-doctor scheduling configuration. DurationMinutes and
// SessionCapacity are global for the doctor: changing them affects every day.
type Availability struct {
	DoctorID        uuid.UUID                             `json:"doctor_id"`
	DurationMinutes int                                   `json:"duration_minutes"`
	SessionCapacity int                                   `json:"session_capacity"`
	Timezone        string                                `json:"timezone"`
	WeeklyHours     map[schedule.Weekday][]schedule.Range `json:"weekly_hours"`
	Breaks          []Exception                           `json:"breaks"`
	Blocks          []Exception                           `json:"blocks"`
	CreatedAt       time.Time                             `json:"created_at"`
	UpdatedAt       time.Time                             `json:"updated_at"`
}

// NewDefault is the record created lazily on first access.
func NewDefault(doctorID uuid.UUID) *Availability {
	now := time.Now().UTC()
	return &Availability{
		DoctorID:        doctorID,
		DurationMinutes: DefaultDurationMinutes,
		SessionCapacity: DefaultSessionCapacity,
		WeeklyHours:     map[schedule.Weekday][]schedule.Range{},
		Breaks:          []Exception{},
		Blocks:          []Exception{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy so cached and stored records are never shared.
func (a *Availability) Clone() *Availability {
	if a == nil {
		return nil
	}
	c := *a
	c.WeeklyHours = make(map[schedule.Weekday][]schedule.Range, len(a.WeeklyHours))
	for day, ranges := range a.WeeklyHours {
		c.WeeklyHours[day] = append([]schedule.Range(nil), ranges...)
	}
	c.Breaks = append([]Exception{}, a.Breaks...)
	c.Blocks = append([]Exception{}, a.Blocks...)
	return &c
}

// IsBlocked reports whether any block touches date. A block covers the whole
// day even when it only spans part of it, and a block ending exactly at
// midnight still covers the day it ends on.
func (a *Availability) IsBlocked(date string) (bool, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return false, err
	}
	next := day.Add(24 * time.Hour)
	for _, b := range a.Blocks {
		if schedule.TimesOverlap(day, next, b.Start, b.End) || (!day.Before(b.Start) && !day.After(b.End)) {
			return true, nil
		}
	}
	return false, nil
}

// WorkingRangesForDate returns the weekday's raw ranges, or none when the date
// is blocked.
func (a *Availability) WorkingRangesForDate(date string) ([]schedule.Range, error) {
	blocked, err := a.IsBlocked(date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return []schedule.Range{}, nil
	}
	day, err := schedule.WeekdayOfDate(date)
	if err != nil {
		return nil, err
	}
	return append([]schedule.Range{}, a.WeeklyHours[day]...), nil
}

// SlotsForDate expands the date's working ranges into fixed-duration slots.
func (a *Availability) SlotsForDate(date string) ([]schedule.Slot, error) {
	ranges, err := a.WorkingRangesForDate(date)
	if err != nil {
		return nil, err
	}
	return schedule.GenerateSlots(ranges, a.DurationMinutes)
}

// ExceptionsOn returns every break and block intersecting the date.
func (a *Availability) ExceptionsOn(date string) ([]Exception, error) {
	day, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}
	next := day.Add(24 * time.Hour)

	var out []Exception
	for _, group := range [][]Exception{a.Breaks, a.Blocks} {
		for _, e := range group {
			if schedule.TimesOverlap(day, next, e.Start, e.End) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// RangeContaining finds the working range on date whose [start,end) holds hhmm.
func (a *Availability) RangeContaining(date, hhmm string) (schedule.Range, bool, error) {
	ranges, err := a.WorkingRangesForDate(date)
	if err != nil {
		return schedule.Range{}, false, err
	}
	for _, r := range ranges {
		if r.Contains(hhmm) {
			return r, true, nil
		}
	}
	return schedule.Range{}, false, nil
}

func sortRanges(ranges []schedule.Range) {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})
}
