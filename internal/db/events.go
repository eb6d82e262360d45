package db

import (
	"database/sql"
	"errors"

	"time"

	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/model"
)

const eventColumns = `event_id, device_name, event_type, title, description, scheduled_time, duration_minutes, command_type, command_params, recurrence, recurrence_end, enabled, color, created_at, updated_at`

func (s *pgStore) CreateEvent(ev model.CalendarEvent) (model.CalendarEvent, error) {
	var out model.CalendarEvent
	const q = `
	INSERT INTO calendar_events
	    (device_name, event_type, title, description, scheduled_time, duration_minutes,
	     command_type, command_params, recurrence, recurrence_end, enabled, color, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
	RETURNING ` + eventColumns + `;`
	if err := s.db.Get(&out, q,
		ev.DeviceName, ev.EventType, ev.Title, ev.Description, ev.ScheduledTime, ev.DurationMinutes,
		ev.CommandType, jsonArg(ev.CommandParams), ev.Recurrence, ev.RecurrenceEnd, ev.Enabled, ev.Color,
	); err != nil {
		log.Error().Err(err).Str("device", ev.DeviceName).Msg("CreateEvent failed")
		return model.CalendarEvent{}, err
	}
	return out, nil
}

// GetEvent fetches one event by ID. Returns sql.ErrNoRows if missing.
func (s *pgStore) GetEvent(eventID int) (model.CalendarEvent, error) {
	var ev model.CalendarEvent
	const q = `SELECT ` + eventColumns + ` FROM calendar_events WHERE event_id = $1;`
	if err := s.db.Get(&ev, q, eventID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Int("event_id", eventID).Msg("GetEvent failed")
		}
		return model.CalendarEvent{}, err
	}
	return ev, nil
}

// ListEventsForDevice returns a device's events ordered by scheduled time.
// from/to bound the range when non-nil; from is inclusive, to exclusive.
func (s *pgStore) ListEventsForDevice(deviceName string, from, to *time.Time) ([]model.CalendarEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM calendar_events WHERE device_name = $1`
	args := []any{deviceName}
	if from != nil {
		args = append(args, *from)
		q += ` AND scheduled_time >= $2`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			q += ` AND scheduled_time < $3`
		} else {
			q += ` AND scheduled_time < $2`
		}
	}
	q += ` ORDER BY scheduled_time;`

	var out []model.CalendarEvent
	if err := s.db.Select(&out, q, args...); err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("ListEventsForDevice failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) UpdateEvent(ev model.CalendarEvent) (model.CalendarEvent, error) {
	var out model.CalendarEvent
	const q = `
	UPDATE calendar_events SET
	    device_name      = $2,
	    event_type       = $3,
	    title            = $4,
	    description      = $5,
	    scheduled_time   = $6,
	    duration_minutes = $7,
	    command_type     = $8,
	    command_params   = $9,
	    recurrence       = $10,
	    recurrence_end   = $11,
	    enabled          = $12,
	    color            = $13,
	    updated_at       = now()
	WHERE event_id = $1
	RETURNING ` + eventColumns + `;`
	if err := s.db.Get(&out, q,
		ev.ID, ev.DeviceName, ev.EventType, ev.Title, ev.Description, ev.ScheduledTime, ev.DurationMinutes,
		ev.CommandType, jsonArg(ev.CommandParams), ev.Recurrence, ev.RecurrenceEnd, ev.Enabled, ev.Color,
	); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Int("event_id", ev.ID).Msg("UpdateEvent failed")
		}
		return model.CalendarEvent{}, err
	}
	return out, nil
}

// DeleteEvent removes one event. Execution log rows cascade with it.
func (s *pgStore) DeleteEvent(eventID int) error {
	res, err := s.db.Exec(`DELETE FROM calendar_events WHERE event_id = $1;`, eventID)
	if err != nil {
		log.Error().Err(err).Int("event_id", eventID).Msg("DeleteEvent failed")
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteEventsForDevice clears a device's calendar, typically before
// re-materializing a profile. Returns the number of events removed.
func (s *pgStore) DeleteEventsForDevice(deviceName string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM calendar_events WHERE device_name = $1;`, deviceName)
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("DeleteEventsForDevice failed")
		return 0, err
	}
	return res.RowsAffected()
}
