package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// BookingParams is one compare-and-append unit: the store counts active
// appointments whose start lies in Session and inserts Appointment only while
// that count is below Capacity.
type BookingParams struct {
	Appointment *Appointment
	Session     schedule.Range
	Capacity    int
}

// ReschedulePlan moves an existing appointment into Session on Date.
type ReschedulePlan struct {
	Date      string
	StartTime string
	EndTime   string
	Session   schedule.Range
	Capacity  int
}

// Repository contains all storage interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListActiveByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error)
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Book sets QueueNo to the session count plus one and inserts atomically.
	// Returns ErrSessionFull or ErrSlotTaken without writing anything.
	Book(ctx context.Context, p BookingParams) (*Appointment, error)
	// Reschedule re-runs the capacity and uniqueness checks against the plan and
	// moves the appointment in place, resetting it to Booked.
	Reschedule(ctx context.Context, id uuid.UUID, plan ReschedulePlan) (*Appointment, error)
	// Transition locks the appointment, lets fn mutate its status fields and
	// stores them. fn errors abort without writing.
	Transition(ctx context.Context, id uuid.UUID, fn func(a *Appointment) error) (*Appointment, error)

	FindExpiredHolds(ctx context.Context, now time.Time) ([]Appointment, error)
	// PurgeDay deletes every appointment of the doctor on date in one atomic
	// step and returns the deleted rows.
	PurgeDay(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// SessionKey identifies the unit that booking serializes on.
func SessionKey(doctorID uuid.UUID, date string, session schedule.Range) string {
	return fmt.Sprintf("%s:%s:%s", doctorID, date, session.Start)
}
