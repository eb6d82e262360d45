package model

import (
	"encoding/json"
	"time"
)

// Frequency tells the registry how a schedule repeats.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// ScheduleDefinition is a named recurring job against one device.
//
// StartTime is a wall-clock "HH:MM" in the controller's local timezone.
// Actions maps actuator names (e.g. "waterpump") to the JSON payload the
// device receives when the job fires. A zero DurationMinutes means the
// actuators are not turned back off by the engine.
type ScheduleDefinition struct {
	Name            string                     `db:"name" json:"name"`
	DeviceName      string                     `db:"device_name" json:"device_name"`
	StartTime       string                     `db:"start_time" json:"start_time"`
	Frequency       Frequency                  `db:"frequency" json:"frequency"`
	DayOfWeek       *string                    `db:"day_of_week" json:"day_of_week,omitempty"`
	DurationMinutes int                        `db:"duration_minutes" json:"duration_minutes"`
	Actions         map[string]json.RawMessage `db:"-" json:"actions"`
	Enabled         bool                       `db:"enabled" json:"enabled"`
	CreatedAt       time.Time                  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                  `db:"updated_at" json:"updated_at"`
}
