package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a process-local store. A single mutex makes every
// booking a serialized compare-and-append.
type MemoryRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	nextEventID  int64
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		now:          time.Now,
	}
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return a.clone(), nil
}

func (r *MemoryRepository) ListActiveByDoctorDate(_ context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filterLocked(func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Date == date && a.Status.IsActive()
	}), nil
}

func (r *MemoryRepository) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filterLocked(func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Date == date
	}), nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.filterLocked(func(a *Appointment) bool { return a.PatientID == patientID })
	// newest first
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date > all[j].Date
		}
		return all[i].StartTime > all[j].StartTime
	})
	if offset >= len(all) {
		return []Appointment{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) Book(_ context.Context, p BookingParams) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt := p.Appointment
	count := r.countInSessionLocked(appt.DoctorID, appt.Date, p, uuid.Nil)
	if count >= p.Capacity {
		return nil, ErrSessionFull
	}
	if r.slotTakenLocked(appt.DoctorID, appt.Date, appt.StartTime, uuid.Nil) {
		return nil, ErrSlotTaken
	}

	stored := appt.clone()
	stored.QueueNo = count + 1
	now := r.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.appointments[stored.ID] = stored
	return stored.clone(), nil
}

func (r *MemoryRepository) Reschedule(_ context.Context, id uuid.UUID, plan ReschedulePlan) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if err := CanReschedule(current.Status); err != nil {
		return nil, err
	}

	params := BookingParams{Session: plan.Session, Capacity: plan.Capacity}
	count := r.countInSessionLocked(current.DoctorID, plan.Date, params, id)
	if count >= plan.Capacity {
		return nil, ErrSessionFull
	}
	if r.slotTakenLocked(current.DoctorID, plan.Date, plan.StartTime, id) {
		return nil, ErrSlotTaken
	}

	current.Date = plan.Date
	current.StartTime = plan.StartTime
	current.EndTime = plan.EndTime
	current.Status = StatusBooked
	current.QueueNo = count + 1
	current.HoldExpiresAt = nil
	current.UpdatedAt = r.now().UTC()
	return current.clone(), nil
}

func (r *MemoryRepository) Transition(_ context.Context, id uuid.UUID, fn func(a *Appointment) error) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	working := current.clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	current.Status = working.Status
	current.CancelReason = working.CancelReason
	current.HoldExpiresAt = working.HoldExpiresAt
	current.UpdatedAt = r.now().UTC()
	return current.clone(), nil
}

func (r *MemoryRepository) FindExpiredHolds(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filterLocked(func(a *Appointment) bool {
		return a.Status == StatusAwaitingPayment && a.HoldExpiresAt != nil && a.HoldExpiresAt.Before(now)
	}), nil
}

func (r *MemoryRepository) PurgeDay(_ context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := r.filterLocked(func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Date == date
	})
	for _, a := range deleted {
		delete(r.appointments, a.ID)
	}
	return deleted, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now().UTC()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns the recorded event log in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) countInSessionLocked(doctorID uuid.UUID, date string, p BookingParams, exclude uuid.UUID) int {
	count := 0
	for _, a := range r.appointments {
		if a.ID == exclude || a.DoctorID != doctorID || a.Date != date || !a.Status.IsActive() {
			continue
		}
		if p.Session.Contains(a.StartTime) {
			count++
		}
	}
	return count
}

func (r *MemoryRepository) slotTakenLocked(doctorID uuid.UUID, date, start string, exclude uuid.UUID) bool {
	for _, a := range r.appointments {
		if a.ID != exclude && a.DoctorID == doctorID && a.Date == date && a.StartTime == start && a.Status.IsActive() {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) filterLocked(keep func(a *Appointment) bool) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range r.appointments {
		if keep(a) {
			out = append(out, *a.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
