package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/verdant-labs/growpod/internal/model"
)

// ErrNotFound is returned when an operation names an unknown schedule.
var ErrNotFound = errors.New("schedule not found")

// ValidationError reports the specific field that keeps a definition out
// of the registry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schedule: %s %s", e.Field, e.Reason)
}

// cron day-of-week numbers, Sunday=0
var weekdays = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// Validate checks a definition before it can reach the trigger path.
// A definition that passes here always yields a valid cron spec.
func Validate(def model.ScheduleDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(def.DeviceName) == "" {
		return &ValidationError{Field: "device_name", Reason: "must not be empty"}
	}
	if _, _, err := parseHHMM(def.StartTime); err != nil {
		return &ValidationError{Field: "start_time", Reason: err.Error()}
	}
	switch def.Frequency {
	case model.FrequencyDaily:
		// day_of_week ignored for daily rules
	case model.FrequencyWeekly:
		if def.DayOfWeek == nil || strings.TrimSpace(*def.DayOfWeek) == "" {
			return &ValidationError{Field: "day_of_week", Reason: "required for weekly schedules"}
		}
		if _, ok := weekdays[strings.ToLower(strings.TrimSpace(*def.DayOfWeek))]; !ok {
			return &ValidationError{Field: "day_of_week", Reason: fmt.Sprintf("unknown day %q", *def.DayOfWeek)}
		}
	default:
		return &ValidationError{Field: "frequency", Reason: fmt.Sprintf("must be %q or %q", model.FrequencyDaily, model.FrequencyWeekly)}
	}
	if def.DurationMinutes < 0 {
		return &ValidationError{Field: "duration_minutes", Reason: "must not be negative"}
	}
	if len(def.Actions) == 0 {
		return &ValidationError{Field: "actions", Reason: "must name at least one actuator"}
	}
	return nil
}

// cronSpec renders a validated definition as a five-field cron expression:
// "M H * * *" for daily rules, "M H * * DOW" for weekly ones.
func cronSpec(def model.ScheduleDefinition) string {
	hour, minute, _ := parseHHMM(def.StartTime)
	if def.Frequency == model.FrequencyWeekly {
		dow := weekdays[strings.ToLower(strings.TrimSpace(*def.DayOfWeek))]
		return fmt.Sprintf("%d %d * * %d", minute, hour, dow)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
