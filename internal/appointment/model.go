package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

type Status string

const (
	StatusBooked          Status = "Booked"
	StatusAwaitingPayment Status = "AwaitingPayment"
	StatusConfirmed       Status = "Confirmed"
	StatusCheckedIn       Status = "CheckedIn"
	StatusCompleted       Status = "Completed"
	StatusCancelled       Status = "Cancelled"
	StatusNoShow          Status = "NoShow"
	StatusRescheduled     Status = "Rescheduled"
)

var allStatuses = []Status{
	StatusBooked, StatusAwaitingPayment, StatusConfirmed, StatusCheckedIn,
	StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, s)
}

// IsTerminal is true for Completed and Cancelled.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive is true for anything that still occupies its slot.
func (s Status) IsActive() bool {
	return s != StatusCancelled
}

// Snapshot is patient data copied at booking time, independent of later
// profile edits.
type Snapshot struct {
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone,omitempty"`
	PatientEmail string `json:"patient_email,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type Appointment struct {
	ID            uuid.UUID  `json:"id"`
	ReferenceNo   string     `json:"reference_no"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	Date          string     `json:"date"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	Status        Status     `json:"status"`
	QueueNo       int        `json:"queue_no"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Snapshot
}

func (a *Appointment) clone() *Appointment {
	c := *a
	if a.CancelReason != nil {
		reason := *a.CancelReason
		c.CancelReason = &reason
	}
	if a.HoldExpiresAt != nil {
		at := *a.HoldExpiresAt
		c.HoldExpiresAt = &at
	}
	return &c
}

// StartsAt is the naive UTC instant of the appointment start.
func (a *Appointment) StartsAt() (time.Time, error) {
	return schedule.At(a.Date, a.StartTime)
}

type SessionStatus string

const (
	SessionAvailable SessionStatus = "AVAILABLE"
	SessionFull      SessionStatus = "FULL"
	SessionClosed    SessionStatus = "CLOSED"
)

// Session summarizes one working range on one date.
type Session struct {
	Range              schedule.Range `json:"range"`
	ActiveAppointments int            `json:"active_appointments"`
	Capacity           int            `json:"capacity"`
	Remaining          int            `json:"remaining"`
	Bookable           bool           `json:"bookable"`
	Status             SessionStatus  `json:"status"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// newReferenceNo builds APT-YYYYMMDD-XXXXXXXX. Uniqueness is enforced by the
// store.
func newReferenceNo(date string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "APT-" + strings.ReplaceAll(date, "-", "") + "-" + suffix
}
