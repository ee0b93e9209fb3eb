package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/config"
	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking-engine/internal/redis"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	reasonHoldExpired = "payment hold expired"
	reasonDayPurged   = "day purged by doctor"
)

// AvailabilitySource is the read side of the availability store.
type AvailabilitySource interface {
	Get(ctx context.Context, doctorID uuid.UUID) (*availability.Availability, error)
	GetOrCreate(ctx context.Context, doctorID uuid.UUID) (*availability.Availability, error)
}

type Service struct {
	repo     Repository
	avail    AvailabilitySource
	locker   redisclient.Locker
	notifier Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time

	cutoff  time.Duration
	holdTTL time.Duration
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for cutoff tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(repo Repository, avail AvailabilitySource, locker redisclient.Locker, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		avail:    avail,
		locker:   locker,
		notifier: nopNotifier{},
		log:      zerolog.Nop(),
		now:      time.Now,
		cutoff:   cfg.BookingCutoff,
		holdTTL:  cfg.PaymentHoldTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewUnregistered()
	}
	s.log = s.log.With().Str("component", "appointment").Logger()
	return s
}

// BookRequest carries everything needed to reserve one slot.
type BookRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string
	StartTime string
	Snapshot
	// RequirePayment books into AwaitingPayment with a hold that the expiry
	// worker cancels if it is never confirmed.
	RequirePayment bool
}

// slotPlan is a validated target slot together with the session it falls in.
type slotPlan struct {
	date     string
	start    string
	end      string
	session  schedule.Range
	capacity int
}

// Book reserves a slot. Capacity and uniqueness are checked and the
// appointment is inserted as one unit, serialized per session.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	appt, err := s.book(ctx, req)
	s.metrics.BookingAttempts.WithLabelValues(outcome(err)).Inc()
	return appt, err
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil || req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id and patient_id are required", ErrInvalidRequest)
	}

	av, err := s.configured(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plan(av, req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		ID:          uuid.New(),
		ReferenceNo: newReferenceNo(plan.date),
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		Date:        plan.date,
		StartTime:   plan.start,
		EndTime:     plan.end,
		Status:      StatusBooked,
		Snapshot:    req.Snapshot,
	}
	if req.RequirePayment {
		expiresAt := s.now().UTC().Add(s.holdTTL)
		appt.Status = StatusAwaitingPayment
		appt.HoldExpiresAt = &expiresAt
	}

	var created *Appointment
	err = s.withSessionLock(ctx, req.DoctorID, plan, func(lockCtx context.Context) error {
		booked, err := s.repo.Book(lockCtx, BookingParams{
			Appointment: appt,
			Session:     plan.session,
			Capacity:    plan.capacity,
		})
		created = booked
		return err
	})
	if err != nil {
		return nil, s.ruleFailure(err, plan)
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("date", created.Date).
		Str("start_time", created.StartTime).
		Int("queue_no", created.QueueNo).
		Msg("appointment booked")

	s.logEvent(ctx, created, EventAppointmentBooked, map[string]any{
		"reference_no": created.ReferenceNo,
		"patient_id":   created.PatientID.String(),
		"doctor_id":    created.DoctorID.String(),
		"date":         created.Date,
		"start_time":   created.StartTime,
		"end_time":     created.EndTime,
		"queue_no":     created.QueueNo,
		"status":       created.Status,
	})

	return created, nil
}

// Reschedule moves an appointment to a new date/time after re-running every
// booking rule. The result is always Booked with a fresh queue number.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date, startTime string) (*Appointment, error) {
	appt, err := s.reschedule(ctx, id, date, startTime)
	s.metrics.RescheduleAttempts.WithLabelValues(outcome(err)).Inc()
	return appt, err
}

func (s *Service) reschedule(ctx context.Context, id uuid.UUID, date, startTime string) (*Appointment, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanReschedule(current.Status); err != nil {
		return nil, err
	}

	av, err := s.configured(ctx, current.DoctorID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plan(av, date, startTime)
	if err != nil {
		return nil, err
	}

	var moved *Appointment
	err = s.withSessionLock(ctx, current.DoctorID, plan, func(lockCtx context.Context) error {
		updated, err := s.repo.Reschedule(lockCtx, id, ReschedulePlan{
			Date:      plan.date,
			StartTime: plan.start,
			EndTime:   plan.end,
			Session:   plan.session,
			Capacity:  plan.capacity,
		})
		moved = updated
		return err
	})
	if err != nil {
		return nil, s.ruleFailure(err, plan)
	}

	s.log.Info().
		Str("appointment_id", moved.ID.String()).
		Str("from", current.Date+" "+current.StartTime).
		Str("to", moved.Date+" "+moved.StartTime).
		Msg("appointment rescheduled")

	s.logEvent(ctx, moved, EventAppointmentRescheduled, map[string]any{
		"reference_no":    moved.ReferenceNo,
		"from_date":       current.Date,
		"from_start_time": current.StartTime,
		"date":            moved.Date,
		"start_time":      moved.StartTime,
		"end_time":        moved.EndTime,
		"queue_no":        moved.QueueNo,
	})

	return moved, nil
}

// ChangeStatus applies an explicit transition. reason is kept only when the
// target is Cancelled.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to Status, reason string) (*Appointment, error) {
	var from Status
	updated, err := s.repo.Transition(ctx, id, func(a *Appointment) error {
		if err := CanTransition(a.Status, to); err != nil {
			return err
		}
		from = a.Status
		a.Status = to
		a.HoldExpiresAt = nil
		if to == StatusCancelled && reason != "" {
			a.CancelReason = &reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanges.WithLabelValues(string(to)).Inc()
	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("appointment status changed")

	payload := map[string]any{
		"reference_no": updated.ReferenceNo,
		"from":         from,
		"to":           to,
	}
	s.logEvent(ctx, updated, EventAppointmentStatus, payload)
	if to == StatusCancelled {
		s.logEvent(ctx, updated, EventAppointmentCancelled, cancelPayload(updated))
	}

	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.ChangeStatus(ctx, id, StatusCancelled, reason)
}

// Confirm records payment. An AwaitingPayment hold that already lapsed is
// cancelled on the spot and ErrPaymentHoldExpired is returned.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	now := s.now().UTC()
	expired := false

	updated, err := s.repo.Transition(ctx, id, func(a *Appointment) error {
		if err := CanConfirm(a.Status); err != nil {
			return err
		}
		if a.Status == StatusAwaitingPayment && a.HoldExpiresAt != nil && a.HoldExpiresAt.Before(now) {
			expired = true
			expireHold(a)
			return nil
		}
		a.Status = StatusConfirmed
		a.HoldExpiresAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.metrics.ExpiredHolds.Inc()
		s.logEvent(ctx, updated, EventAppointmentExpired, map[string]any{
			"reference_no": updated.ReferenceNo,
			"reason":       "confirm_after_expiry",
		})
		return nil, fmt.Errorf("%w: appointment %s", ErrPaymentHoldExpired, updated.ReferenceNo)
	}

	s.metrics.StatusChanges.WithLabelValues(string(StatusConfirmed)).Inc()
	s.logEvent(ctx, updated, EventAppointmentConfirmed, map[string]any{
		"reference_no": updated.ReferenceNo,
	})
	return updated, nil
}

// ExpireAwaitingPayment is intended to be called by the worker periodically.
// It returns how many holds were cancelled.
func (s *Service) ExpireAwaitingPayment(ctx context.Context) (int, error) {
	now := s.now().UTC()
	candidates, err := s.repo.FindExpiredHolds(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired holds: %w", err)
	}

	expired := 0
	for _, candidate := range candidates {
		updated, err := s.repo.Transition(ctx, candidate.ID, func(a *Appointment) error {
			if a.Status != StatusAwaitingPayment {
				return errHoldSettled
			}
			expireHold(a)
			return nil
		})
		if err != nil {
			if !errors.Is(err, errHoldSettled) && !errors.Is(err, ErrAppointmentNotFound) {
				s.log.Error().Err(err).Str("appointment_id", candidate.ID.String()).Msg("failed to expire hold")
			}
			continue
		}

		expired++
		s.metrics.ExpiredHolds.Inc()
		s.logEvent(ctx, updated, EventAppointmentExpired, map[string]any{
			"reference_no": updated.ReferenceNo,
			"reason":       "worker",
		})
	}

	return expired, nil
}

// errHoldSettled means the hold was confirmed or cancelled between the scan
// and the update.
var errHoldSettled = errors.New("hold already settled")

func expireHold(a *Appointment) {
	reason := reasonHoldExpired
	a.Status = StatusCancelled
	a.CancelReason = &reason
	a.HoldExpiresAt = nil
}

// CancelAndPurgeDay deletes all of the doctor's appointments on date and emits
// a cancellation for every deleted appointment that was still active.
func (s *Service) CancelAndPurgeDay(ctx context.Context, doctorID uuid.UUID, date string) (int64, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	removed, err := s.repo.PurgeDay(ctx, doctorID, date)
	if err != nil {
		return 0, fmt.Errorf("purge appointments: %w", err)
	}
	deleted := int64(len(removed))

	cancelled := 0
	for i := range removed {
		a := &removed[i]
		if !a.Status.IsActive() {
			continue
		}
		reason := reasonDayPurged
		a.Status = StatusCancelled
		a.CancelReason = &reason
		s.notify(ctx, EventAppointmentCancelled, cancelPayload(a))
		cancelled++
	}

	s.log.Warn().
		Str("doctor_id", doctorID.String()).
		Str("date", date).
		Int64("deleted", deleted).
		Msg("appointments purged")

	s.logEvent(ctx, nil, EventAppointmentsPurged, map[string]any{
		"doctor_id": doctorID.String(),
		"date":      date,
		"deleted":   deleted,
		"cancelled": cancelled,
	})

	return deleted, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListByDoctorDate returns the doctor's day sheet, cancelled entries included.
func (s *Service) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	appointments, err := s.repo.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appointments, nil
}

// ListByPatient pages through a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// configured loads availability for the booking path, which must not create
// a default record.
func (s *Service) configured(ctx context.Context, doctorID uuid.UUID) (*availability.Availability, error) {
	av, err := s.avail.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			return nil, fmt.Errorf("%w: doctor %s", ErrAvailabilityNotConfigured, doctorID)
		}
		return nil, err
	}
	return av, nil
}

// plan validates a requested slot against formats, working hours, breaks and
// the cutoff window.
func (s *Service) plan(av *availability.Availability, date, startTime string) (slotPlan, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return slotPlan{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	startMin, err := schedule.ToMinutes(startTime)
	if err != nil {
		return slotPlan{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	session, ok, err := av.RangeContaining(date, startTime)
	if err != nil {
		return slotPlan{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !ok {
		return slotPlan{}, ruleError(ErrOutsideWorkingHours, date, startTime, "no working range contains the start time")
	}

	sessionStart, sessionEnd, err := session.Bounds()
	if err != nil {
		return slotPlan{}, err
	}
	if (startMin-sessionStart)%av.DurationMinutes != 0 {
		return slotPlan{}, ruleError(ErrOutsideWorkingHours, date, startTime,
			"slots in %s start every %d minutes", session, av.DurationMinutes)
	}
	endMin := startMin + av.DurationMinutes
	if endMin > sessionEnd {
		return slotPlan{}, ruleError(ErrOutsideWorkingHours, date, startTime,
			"a %d minute slot does not fit before %s", av.DurationMinutes, session.End)
	}
	endTime := schedule.ToHHMM(endMin)

	slotStart, _ := schedule.At(date, startTime)
	slotEnd, _ := schedule.At(date, endTime)
	for _, b := range av.Breaks {
		if schedule.TimesOverlap(slotStart, slotEnd, b.Start, b.End) {
			return slotPlan{}, ruleError(ErrOutsideWorkingHours, date, startTime, "overlaps a break")
		}
	}

	if !s.open(slotStart) {
		return slotPlan{}, ruleError(ErrBookingClosed, date, startTime,
			"booking closes %s before the slot", s.cutoff)
	}

	return slotPlan{
		date:     date,
		start:    startTime,
		end:      endTime,
		session:  session,
		capacity: av.SessionCapacity,
	}, nil
}

// open reports whether start is strictly further away than the cutoff.
func (s *Service) open(start time.Time) bool {
	return start.Sub(s.now().UTC()) > s.cutoff
}

func (s *Service) withSessionLock(ctx context.Context, doctorID uuid.UUID, plan slotPlan, fn func(ctx context.Context) error) error {
	started := time.Now()
	defer func() {
		s.metrics.BookingLatency.Observe(time.Since(started).Seconds())
	}()

	err := s.locker.WithLock(ctx, SessionKey(doctorID, plan.date, plan.session), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSessionBusy
	}
	return err
}

// ruleFailure attaches the slot to capacity and uniqueness failures so the
// caller can offer an alternative.
func (s *Service) ruleFailure(err error, plan slotPlan) error {
	switch {
	case errors.Is(err, ErrSessionFull):
		return ruleError(ErrSessionFull, plan.date, plan.start,
			"session %s holds %d patients", plan.session, plan.capacity)
	case errors.Is(err, ErrSlotTaken):
		return ruleError(ErrSlotTaken, plan.date, plan.start, "pick another slot")
	case errors.Is(err, ErrSessionBusy):
		return ruleError(ErrSessionBusy, plan.date, plan.start, "retry shortly")
	case errors.Is(err, db.ErrStorageFailure):
		s.log.Error().Err(err).Str("date", plan.date).Str("start_time", plan.start).Msg("booking storage failure")
	}
	return err
}

func cancelPayload(a *Appointment) map[string]any {
	payload := map[string]any{
		"reference_no": a.ReferenceNo,
		"patient_id":   a.PatientID.String(),
		"doctor_id":    a.DoctorID.String(),
		"date":         a.Date,
		"start_time":   a.StartTime,
	}
	if a.CancelReason != nil {
		payload["reason"] = *a.CancelReason
	}
	return payload
}

// logEvent appends to the event log and notifies. Both are best effort: the
// appointment change is already committed.
func (s *Service) logEvent(ctx context.Context, appt *Appointment, eventType string, payload map[string]any) {
	ctx = context.WithoutCancel(ctx)

	ev := EventLog{
		EventType: eventType,
		CreatedAt: s.now().UTC(),
	}
	if appt != nil {
		id := appt.ID
		ev.AppointmentID = &id
		payload["appointment_id"] = id.String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}
	ev.Payload = data

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to insert event log")
	}
	s.notify(ctx, eventType, payload)
}

func (s *Service) notify(ctx context.Context, eventType string, payload map[string]any) {
	if err := s.notifier.Publish(context.WithoutCancel(ctx), eventType, payload); err != nil {
		s.metrics.EventPublishErrors.Inc()
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

// outcome is the metrics label for a booking result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSessionFull):
		return "session_full"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrBookingClosed):
		return "closed"
	case errors.Is(err, ErrOutsideWorkingHours):
		return "outside_hours"
	case errors.Is(err, ErrSessionBusy):
		return "busy"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrAvailabilityNotConfigured):
		return "rejected"
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrAppointmentFinalized):
		return "rejected"
	default:
		return "error"
	}
}
