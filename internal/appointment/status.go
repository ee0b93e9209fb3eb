package appointment

import "fmt"

// explicitTargets are the states reachable through a status change.
var explicitTargets = map[Status]bool{
	StatusCheckedIn: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// CanTransition checks an explicit status change. Terminal states never move;
// any other state may go to CheckedIn, Completed, Cancelled or NoShow.
func CanTransition(from, to Status) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is final", ErrInvalidTransition, from)
	}
	if !explicitTargets[to] {
		return fmt.Errorf("%w: cannot change %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanConfirm checks the payment confirmation step.
func CanConfirm(from Status) error {
	switch from {
	case StatusBooked, StatusAwaitingPayment:
		return nil
	default:
		return fmt.Errorf("%w: cannot confirm %s", ErrInvalidTransition, from)
	}
}

// CanReschedule rejects terminal appointments. A successful reschedule always
// lands in Booked.
func CanReschedule(from Status) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: appointment is %s", ErrAppointmentFinalized, from)
	}
	return nil
}
