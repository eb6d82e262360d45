package model

import (
	"encoding/json"
	"time"
)

// Recurrence values accepted on calendar events. The materializer always
// emits discrete "none" events; the rest are operator metadata.
const (
	RecurrenceNone     = "none"
	RecurrenceDaily    = "daily"
	RecurrenceWeekly   = "weekly"
	RecurrenceBiweekly = "biweekly"
	RecurrenceMonthly  = "monthly"
)

// Event types written by the profile materializer. Operators may also
// file maintenance, milestone or custom events by hand.
const (
	EventTypeDosing      = "dosing"
	EventTypeWaterChange = "water_change"
	EventTypeMaintenance = "maintenance"
	EventTypeMilestone   = "milestone"
	EventTypeCustom      = "custom"
)

// Command types a calendar event can carry for the device.
const (
	CommandDose         = "dose"
	CommandDrainAndFill = "drain-and-fill"
)

// CalendarEvent is one dated entry on a device's calendar. Events produced
// by the profile materializer carry the command the device should run and
// the display color for the calendar UI.
type CalendarEvent struct {
	ID              int             `db:"event_id" json:"event_id"`
	DeviceName      string          `db:"device_name" json:"device_name"`
	EventType       string          `db:"event_type" json:"event_type"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	ScheduledTime   time.Time       `db:"scheduled_time" json:"scheduled_time"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	CommandType     *string         `db:"command_type" json:"command_type,omitempty"`
	CommandParams   json.RawMessage `db:"command_params" json:"command_params,omitempty"`
	Recurrence      string          `db:"recurrence" json:"recurrence"`
	RecurrenceEnd   *time.Time      `db:"recurrence_end" json:"recurrence_end,omitempty"`
	Enabled         bool            `db:"enabled" json:"enabled"`
	Color           string          `db:"color" json:"color"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ExecutionLogEntry records one attempt at running a scheduled job or
// calendar event against a device. EventID is nil for registry schedules,
// which have no calendar row.
type ExecutionLogEntry struct {
	ID            int             `db:"log_id" json:"log_id"`
	EventID       *int            `db:"event_id" json:"event_id,omitempty"`
	ExecutionTime time.Time       `db:"execution_time" json:"execution_time"`
	Success       bool            `db:"success" json:"success"`
	ErrorMessage  *string         `db:"error_message" json:"error_message,omitempty"`
	ResponseData  json.RawMessage `db:"response_data" json:"response_data,omitempty"`
}
