package availability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// Service is the doctor-facing configuration API plus the read paths the
// booking engine needs. Reads go through a short-lived cache; bookings tolerate
// slightly stale configuration.
type Service struct {
	repo  Repository
	cache *cache.Cache
	log   zerolog.Logger
}

func NewService(repo Repository, cacheTTL time.Duration, log zerolog.Logger) *Service {
	s := &Service{
		repo: repo,
		log:  log.With().Str("component", "availability").Logger(),
	}
	if cacheTTL > 0 {
		s.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return s
}

// GetOrCreate returns the doctor's record, creating the default one on first
// access.
func (s *Service) GetOrCreate(ctx context.Context, doctorID uuid.UUID) (*Availability, error) {
	if a, ok := s.cached(doctorID); ok {
		return a, nil
	}
	a, err := s.repo.GetOrCreate(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	s.remember(a)
	return a.Clone(), nil
}

// Get returns ErrNotFound for doctors that never configured availability.
func (s *Service) Get(ctx context.Context, doctorID uuid.UUID) (*Availability, error) {
	if a, ok := s.cached(doctorID); ok {
		return a, nil
	}
	a, err := s.repo.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load availability: %w", err)
	}
	s.remember(a)
	return a.Clone(), nil
}

// UpsertDay adds a working range to the weekday of in.Date unless it is
// already present, and overwrites the doctor-wide duration and capacity.
func (s *Service) UpsertDay(ctx context.Context, doctorID uuid.UUID, in DayInput) (*Availability, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	day, err := schedule.WeekdayOfDate(in.Date)
	if err != nil {
		return nil, invalid("date", "must be YYYY-MM-DD")
	}
	next := schedule.Range{Start: in.StartTime, End: in.EndTime}

	return s.update(ctx, doctorID, func(a *Availability) error {
		if a.WeeklyHours == nil {
			a.WeeklyHours = map[schedule.Weekday][]schedule.Range{}
		}
		ranges := a.WeeklyHours[day]
		if !slices.Contains(ranges, next) {
			candidate := append(append([]schedule.Range{}, ranges...), next)
			sortRanges(candidate)
			if err := checkNoOverlap(fmt.Sprintf("weekly_hours.%s", day), candidate); err != nil {
				return err
			}
			a.WeeklyHours[day] = candidate
		}
		a.DurationMinutes = in.DurationMinutes
		a.SessionCapacity = in.SessionCapacity
		return nil
	})
}

// Set replaces the whole configuration.
func (s *Service) Set(ctx context.Context, doctorID uuid.UUID, cfg Config) (*Availability, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	weekly, err := cfg.weeklyHours()
	if err != nil {
		return nil, err
	}

	return s.update(ctx, doctorID, func(a *Availability) error {
		a.DurationMinutes = cfg.DurationMinutes
		a.SessionCapacity = cfg.SessionCapacity
		a.Timezone = cfg.Timezone
		a.WeeklyHours = weekly
		a.Breaks = toExceptions(cfg.Breaks)
		a.Blocks = toExceptions(cfg.Blocks)
		return nil
	})
}

// AddBreak records a partial-day exclusion.
func (s *Service) AddBreak(ctx context.Context, doctorID uuid.UUID, in ExceptionInput) (*Availability, Exception, error) {
	return s.addException(ctx, doctorID, "break", in, func(a *Availability, e Exception) {
		a.Breaks = append(a.Breaks, e)
	})
}

// AddBlock records a full-day exclusion.
func (s *Service) AddBlock(ctx context.Context, doctorID uuid.UUID, in ExceptionInput) (*Availability, Exception, error) {
	return s.addException(ctx, doctorID, "block", in, func(a *Availability, e Exception) {
		a.Blocks = append(a.Blocks, e)
	})
}

// RemoveException deletes a break or block by id.
func (s *Service) RemoveException(ctx context.Context, doctorID, exceptionID uuid.UUID) (*Availability, error) {
	return s.update(ctx, doctorID, func(a *Availability) error {
		match := func(e Exception) bool { return e.ID == exceptionID }
		before := len(a.Breaks) + len(a.Blocks)
		a.Breaks = slices.DeleteFunc(a.Breaks, match)
		a.Blocks = slices.DeleteFunc(a.Blocks, match)
		if len(a.Breaks)+len(a.Blocks) == before {
			return ErrExceptionNotFound
		}
		return nil
	})
}

// SlotsForDate lists every generated slot on date, before occupancy.
func (s *Service) SlotsForDate(ctx context.Context, doctorID uuid.UUID, date string) ([]schedule.Slot, error) {
	a, err := s.GetOrCreate(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return a.SlotsForDate(date)
}

// WorkingRangesForDate lists the date's working ranges, not yet split.
func (s *Service) WorkingRangesForDate(ctx context.Context, doctorID uuid.UUID, date string) ([]schedule.Range, error) {
	a, err := s.GetOrCreate(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return a.WorkingRangesForDate(date)
}

// ExceptionsForDate lists breaks and blocks that touch date.
func (s *Service) ExceptionsForDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Exception, error) {
	a, err := s.GetOrCreate(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return a.ExceptionsOn(date)
}

func (s *Service) addException(ctx context.Context, doctorID uuid.UUID, kind string, in ExceptionInput, add func(*Availability, Exception)) (*Availability, Exception, error) {
	if err := validateException(kind, in); err != nil {
		return nil, Exception{}, err
	}
	e := toException(in)
	a, err := s.update(ctx, doctorID, func(a *Availability) error {
		add(a, e)
		return nil
	})
	if err != nil {
		return nil, Exception{}, err
	}
	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Str("kind", kind).
		Time("start", e.Start).
		Time("end", e.End).
		Msg("exception added")
	return a, e, nil
}

func (s *Service) update(ctx context.Context, doctorID uuid.UUID, fn func(a *Availability) error) (*Availability, error) {
	a, err := s.repo.Update(ctx, doctorID, fn)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) || errors.Is(err, ErrExceptionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update availability: %w", err)
	}
	s.remember(a)
	s.log.Debug().Str("doctor_id", doctorID.String()).Msg("availability updated")
	return a.Clone(), nil
}

func (s *Service) cached(doctorID uuid.UUID) (*Availability, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(doctorID.String())
	if !ok {
		return nil, false
	}
	return v.(*Availability).Clone(), true
}

func (s *Service) remember(a *Availability) {
	if s.cache == nil {
		return
	}
	s.cache.SetDefault(a.DoctorID.String(), a.Clone())
}

func toException(in ExceptionInput) Exception {
	return Exception{
		ID:     uuid.New(),
		Start:  in.Start.UTC(),
		End:    in.End.UTC(),
		Reason: in.Reason,
	}
}

func toExceptions(in []ExceptionInput) []Exception {
	out := make([]Exception, 0, len(in))
	for _, e := range in {
		out = append(out, toException(e))
	}
	return out
}
