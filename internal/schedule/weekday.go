package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Weekday keys the recurring weekly hours.
type Weekday string

const (
	Mon Weekday = "mon"
	Tue Weekday = "tue"
	Wed Weekday = "wed"
	Thu Weekday = "thu"
	Fri Weekday = "fri"
	Sat Weekday = "sat"
	Sun Weekday = "sun"
)

var Weekdays = []Weekday{Mon, Tue, Wed, Thu, Fri, Sat, Sun}

var byStdWeekday = map[time.Weekday]Weekday{
	time.Monday:    Mon,
	time.Tuesday:   Tue,
	time.Wednesday: Wed,
	time.Thursday:  Thu,
	time.Friday:    Fri,
	time.Saturday:  Sat,
	time.Sunday:    Sun,
}

func WeekdayOf(t time.Time) Weekday {
	return byStdWeekday[t.UTC().Weekday()]
}

// WeekdayOfDate resolves the weekday bucket of a "YYYY-MM-DD" date.
func WeekdayOfDate(date string) (Weekday, error) {
	day, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return WeekdayOf(day), nil
}

func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Weekdays {
		if w == known {
			return w, nil
		}
	}
	return "", fmt.Errorf("%w: unknown weekday %q", ErrInvalidFormat, s)
}
