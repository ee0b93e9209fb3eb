package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest            = errors.New("invalid request")
	ErrAvailabilityNotConfigured = errors.New("availability not configured")
	ErrOutsideWorkingHours       = errors.New("outside working hours")
	ErrBookingClosed             = errors.New("booking closed")
	ErrSessionFull               = errors.New("session full")
	ErrSlotTaken                 = errors.New("slot already taken")
	ErrSessionBusy               = errors.New("session is being booked, please retry")
	ErrAppointmentNotFound       = errors.New("appointment not found")
	ErrAppointmentFinalized      = errors.New("appointment finalized")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrPaymentHoldExpired        = errors.New("payment hold expired")
)

// RuleError tells the caller which booking rule rejected a request and where,
// so a client can offer another slot or date.
type RuleError struct {
	Rule      error
	Date      string
	StartTime string
	Detail    string
}

func (e *RuleError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Rule, e.Date, e.StartTime)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RuleError) Unwrap() error {
	return e.Rule
}

func ruleError(rule error, date, start, format string, args ...any) *RuleError {
	return &RuleError{Rule: rule, Date: date, StartTime: start, Detail: fmt.Sprintf(format, args...)}
}
