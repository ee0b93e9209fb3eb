package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// Sessions summarizes each working range of the doctor on date. The cutoff is
// applied to the session start: once the first slot is inside the window the
// whole session reports CLOSED.
func (s *Service) Sessions(ctx context.Context, doctorID uuid.UUID, date string) ([]Session, error) {
	av, occupied, err := s.dayState(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	ranges, err := av.WorkingRangesForDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	sessions := make([]Session, 0, len(ranges))
	for _, r := range ranges {
		slots, err := schedule.GenerateSlots([]schedule.Range{r}, av.DurationMinutes)
		if err != nil {
			return nil, err
		}

		active := 0
		for _, slot := range slots {
			if occupied[slot.StartTime] {
				active++
			}
		}

		start, err := schedule.At(date, r.Start)
		if err != nil {
			return nil, err
		}

		session := Session{
			Range:              r,
			ActiveAppointments: active,
			Capacity:           av.SessionCapacity,
			Remaining:          max(0, av.SessionCapacity-active),
			Bookable:           s.open(start),
		}
		switch {
		case !session.Bookable:
			session.Status = SessionClosed
		case session.Remaining == 0:
			session.Status = SessionFull
		default:
			session.Status = SessionAvailable
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// FreeSlots lists slots a patient could still pick. Unlike Sessions the cutoff
// is checked per slot, and slots touching a break or block are dropped.
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]schedule.Slot, error) {
	av, occupied, err := s.dayState(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	slots, err := av.SlotsForDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	exceptions, err := av.ExceptionsOn(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	free := make([]schedule.Slot, 0, len(slots))
	for _, slot := range slots {
		if occupied[slot.StartTime] {
			continue
		}
		start, err := schedule.At(date, slot.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := schedule.At(date, slot.EndTime)
		if err != nil {
			return nil, err
		}
		if !s.open(start) || overlapsAny(start, end, exceptions) {
			continue
		}
		free = append(free, slot)
	}

	return free, nil
}

// dayState loads the doctor's configuration (creating the default lazily) and
// the set of occupied start times on date.
func (s *Service) dayState(ctx context.Context, doctorID uuid.UUID, date string) (*availability.Availability, map[string]bool, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	av, err := s.avail.GetOrCreate(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}

	active, err := s.repo.ListActiveByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, nil, fmt.Errorf("list active appointments: %w", err)
	}
	occupied := make(map[string]bool, len(active))
	for _, a := range active {
		occupied[a.StartTime] = true
	}

	return av, occupied, nil
}

func overlapsAny(start, end time.Time, exceptions []availability.Exception) bool {
	for _, e := range exceptions {
		if schedule.TimesOverlap(start, end, e.Start, e.End) {
			return true
		}
	}
	return false
}
