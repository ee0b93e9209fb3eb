package appointment

import "context"

// Notifier receives appointment events after they are committed. Delivery is
// best effort; the service never retries.
type Notifier interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, string, any) error { return nil }

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentStatus      = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentExpired     = "APPOINTMENT_EXPIRED"
	EventAppointmentsPurged     = "APPOINTMENTS_PURGED"
)
