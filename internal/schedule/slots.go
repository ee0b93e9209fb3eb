package schedule

import (
	"errors"
	"fmt"
)

var ErrInvalidDuration = errors.New("slot duration must be positive")

// Slot is one bookable interval inside a working range.
type Slot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// GenerateSlots walks each range from its start in durationMinutes steps and
// emits a slot while it still fits before the range end. Partial trailing
// slots are dropped. Output keeps range order.
func GenerateSlots(ranges []Range, durationMinutes int) ([]Slot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDuration, durationMinutes)
	}

	slots := make([]Slot, 0)
	for _, r := range ranges {
		start, end, err := r.Bounds()
		if err != nil {
			return nil, err
		}
		for cur := start; cur+durationMinutes <= end; cur += durationMinutes {
			slots = append(slots, Slot{
				StartTime: ToHHMM(cur),
				EndTime:   ToHHMM(cur + durationMinutes),
			})
		}
	}
	return slots, nil
}

// AddMinutes shifts an "HH:MM" value, used to derive a slot end time.
func AddMinutes(hhmm string, minutes int) (string, error) {
	t, err := ToMinutes(hhmm)
	if err != nil {
		return "", err
	}
	return ToHHMM(t + minutes), nil
}
