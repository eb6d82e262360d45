package packets

import (
	"encoding/json"
	"time"
)

// body for registering or re-registering a schedule. Field-level
// invariants are checked by the scheduler so violations come back
// naming the offending field.
type ScheduleRequest struct {
	Name            string                     `json:"name"`
	DeviceName      string                     `json:"device_name"`
	StartTime       string                     `json:"start_time"`
	Frequency       string                     `json:"frequency"`
	DayOfWeek       *string                    `json:"day_of_week"`
	DurationMinutes int                        `json:"duration_minutes"`
	Actions         map[string]json.RawMessage `json:"actions"`
	Enabled         *bool                      `json:"enabled"`
}

// body for creating or updating a calendar event
type EventRequest struct {
	DeviceName      string          `json:"device_name" binding:"required"`
	EventType       string          `json:"event_type" binding:"required"`
	Title           string          `json:"title" binding:"required"`
	Description     string          `json:"description"`
	ScheduledTime   time.Time       `json:"scheduled_time" binding:"required"`
	DurationMinutes int             `json:"duration_minutes"`
	CommandType     *string         `json:"command_type"`
	CommandParams   json.RawMessage `json:"command_params"`
	Recurrence      string          `json:"recurrence"`
	RecurrenceEnd   *time.Time      `json:"recurrence_end"`
	Enabled         *bool           `json:"enabled"`
	Color           string          `json:"color"`
}

// query for listing events; from/to bound the range when present
type ListEventsQuery struct {
	Device string     `form:"device" binding:"required"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// body for bulk-materializing a profile onto a device's calendar
type MaterializeRequest struct {
	DeviceName string `json:"device_name" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"` // YYYY-MM-DD
}
