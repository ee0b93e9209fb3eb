package api

import (
	"errors"
	"net/http"

	"github.com/hackgods/clinic-booking-engine/internal/appointment"
	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{appointment.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{availability.ErrInvalidInput, http.StatusBadRequest, "invalid_availability_input"},
	{schedule.ErrInvalidFormat, http.StatusBadRequest, "invalid_format"},

	{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{appointment.ErrAvailabilityNotConfigured, http.StatusNotFound, "availability_not_configured"},
	{availability.ErrExceptionNotFound, http.StatusNotFound, "exception_not_found"},
	{availability.ErrNotFound, http.StatusNotFound, "availability_not_found"},

	{appointment.ErrSessionFull, http.StatusConflict, "session_full"},
	{appointment.ErrSlotTaken, http.StatusConflict, "slot_taken"},
	{appointment.ErrSessionBusy, http.StatusConflict, "session_busy"},
	{appointment.ErrAppointmentFinalized, http.StatusConflict, "appointment_finalized"},
	{appointment.ErrInvalidTransition, http.StatusConflict, "invalid_status_transition"},
	{appointment.ErrPaymentHoldExpired, http.StatusConflict, "payment_hold_expired"},

	{appointment.ErrBookingClosed, http.StatusUnprocessableEntity, "booking_closed"},
	{appointment.ErrOutsideWorkingHours, http.StatusUnprocessableEntity, "outside_working_hours"},

	{db.ErrStorageFailure, http.StatusServiceUnavailable, "storage_failure"},
}

func handleServiceError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}

		resp := ErrorResponse{Error: m.code, Details: err.Error()}
		if m.status == http.StatusServiceUnavailable {
			resp.Details = "storage temporarily unavailable, please retry"
		}

		var verr *availability.ValidationError
		if errors.As(err, &verr) {
			resp.Field = verr.Field
			resp.Details = verr.Reason
		}
		var rerr *appointment.RuleError
		if errors.As(err, &rerr) {
			resp.Rule = &RuleDetail{Date: rerr.Date, StartTime: rerr.StartTime}
		}

		writeJSON(w, m.status, resp)
		return
	}

	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
