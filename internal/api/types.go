package api

import (
	"time"

	"github.com/hackgods/clinic-booking-engine/internal/appointment"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

type BookAppointmentRequest struct {
	DoctorID       string `json:"doctor_id" validate:"required,uuid"`
	PatientID      string `json:"patient_id" validate:"required,uuid"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime      string `json:"start_time" validate:"required,datetime=15:04"`
	PatientName    string `json:"patient_name" validate:"max=200"`
	PatientPhone   string `json:"patient_phone" validate:"max=32"`
	PatientEmail   string `json:"patient_email" validate:"omitempty,email"`
	Notes          string `json:"notes" validate:"max=1000"`
	RequirePayment bool   `json:"require_payment"`
}

type RescheduleRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// UpsertDayRequest only checks presence here; value rules live in the
// availability store so they report the same field names everywhere.
type UpsertDayRequest struct {
	Date            string `json:"date" validate:"required"`
	StartTime       string `json:"start_time" validate:"required"`
	EndTime         string `json:"end_time" validate:"required"`
	DurationMinutes int    `json:"duration_minutes"`
	SessionCapacity int    `json:"session_capacity"`
}

type ExceptionRequest struct {
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required"`
	Reason string    `json:"reason" validate:"max=200"`
}

type SetAvailabilityRequest struct {
	DurationMinutes int                         `json:"duration_minutes"`
	SessionCapacity int                         `json:"session_capacity"`
	Timezone        string                      `json:"timezone"`
	WeeklyHours     map[string][]schedule.Range `json:"weekly_hours"`
	Breaks          []ExceptionRequest          `json:"breaks" validate:"dive"`
	Blocks          []ExceptionRequest          `json:"blocks" validate:"dive"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

type SessionsResponse struct {
	DoctorID string                `json:"doctor_id"`
	Date     string                `json:"date"`
	Sessions []appointment.Session `json:"sessions"`
}

type SlotsResponse struct {
	DoctorID string          `json:"doctor_id"`
	Date     string          `json:"date"`
	Slots    []schedule.Slot `json:"slots"`
}

type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

type RuleDetail struct {
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Details string      `json:"details,omitempty"`
	Field   string      `json:"field,omitempty"`
	Rule    *RuleDetail `json:"rule,omitempty"`
}
