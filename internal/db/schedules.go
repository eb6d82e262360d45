package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/model"
)

// scheduleRow mirrors the schedules table; actions is decoded separately
// because sqlx can't scan JSONB straight into a map.
type scheduleRow struct {
	Name            string          `db:"name"`
	DeviceName      string          `db:"device_name"`
	StartTime       string          `db:"start_time"`
	Frequency       string          `db:"frequency"`
	DayOfWeek       *string         `db:"day_of_week"`
	DurationMinutes int             `db:"duration_minutes"`
	Actions         json.RawMessage `db:"actions"`
	Enabled         bool            `db:"enabled"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

const scheduleColumns = `name, device_name, start_time, frequency, day_of_week, duration_minutes, actions, enabled, created_at, updated_at`

func (r scheduleRow) toModel() (model.ScheduleDefinition, error) {
	def := model.ScheduleDefinition{
		Name:            r.Name,
		DeviceName:      r.DeviceName,
		StartTime:       r.StartTime,
		Frequency:       model.Frequency(r.Frequency),
		DayOfWeek:       r.DayOfWeek,
		DurationMinutes: r.DurationMinutes,
		Enabled:         r.Enabled,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if len(r.Actions) > 0 {
		if err := json.Unmarshal(r.Actions, &def.Actions); err != nil {
			return model.ScheduleDefinition{}, fmt.Errorf("decode actions for schedule %q: %w", r.Name, err)
		}
	}
	return def, nil
}

// jsonArg renders a raw JSON value as a query argument. lib/pq sends
// []byte as bytea, so JSONB columns get the text form instead.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// UpsertSchedule inserts the definition, replacing any existing row with
// the same name. Returns the stored definition.
func (s *pgStore) UpsertSchedule(def model.ScheduleDefinition) (model.ScheduleDefinition, error) {
	actions, err := json.Marshal(def.Actions)
	if err != nil {
		return model.ScheduleDefinition{}, fmt.Errorf("encode actions for schedule %q: %w", def.Name, err)
	}

	var row scheduleRow
	const q = `
	INSERT INTO schedules (name, device_name, start_time, frequency, day_of_week, duration_minutes, actions, enabled, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	ON CONFLICT (name) DO UPDATE SET
	    device_name      = EXCLUDED.device_name,
	    start_time       = EXCLUDED.start_time,
	    frequency        = EXCLUDED.frequency,
	    day_of_week      = EXCLUDED.day_of_week,
	    duration_minutes = EXCLUDED.duration_minutes,
	    actions          = EXCLUDED.actions,
	    enabled          = EXCLUDED.enabled,
	    updated_at       = now()
	RETURNING ` + scheduleColumns + `;`
	if err := s.db.Get(&row, q,
		def.Name, def.DeviceName, def.StartTime, string(def.Frequency),
		def.DayOfWeek, def.DurationMinutes, string(actions), def.Enabled,
	); err != nil {
		log.Error().Err(err).Str("schedule", def.Name).Msg("UpsertSchedule failed")
		return model.ScheduleDefinition{}, err
	}
	return row.toModel()
}

// GetSchedule fetches one definition by name. Returns sql.ErrNoRows if
// no schedule has that name.
func (s *pgStore) GetSchedule(name string) (model.ScheduleDefinition, error) {
	var row scheduleRow
	const q = `SELECT ` + scheduleColumns + ` FROM schedules WHERE name = $1;`
	if err := s.db.Get(&row, q, name); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Str("schedule", name).Msg("GetSchedule failed")
		}
		return model.ScheduleDefinition{}, err
	}
	return row.toModel()
}

func (s *pgStore) ListSchedules() ([]model.ScheduleDefinition, error) {
	var rows []scheduleRow
	const q = `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY name;`
	if err := s.db.Select(&rows, q); err != nil {
		log.Error().Err(err).Msg("ListSchedules failed")
		return nil, err
	}
	return schedulesFromRows(rows)
}

func (s *pgStore) ListSchedulesForDevice(deviceName string) ([]model.ScheduleDefinition, error) {
	var rows []scheduleRow
	const q = `SELECT ` + scheduleColumns + ` FROM schedules WHERE device_name = $1 ORDER BY name;`
	if err := s.db.Select(&rows, q, deviceName); err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("ListSchedulesForDevice failed")
		return nil, err
	}
	return schedulesFromRows(rows)
}

func schedulesFromRows(rows []scheduleRow) ([]model.ScheduleDefinition, error) {
	out := make([]model.ScheduleDefinition, 0, len(rows))
	for _, r := range rows {
		def, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// DeleteSchedule removes one definition. Returns sql.ErrNoRows if no
// schedule had that name.
func (s *pgStore) DeleteSchedule(name string) error {
	res, err := s.db.Exec(`DELETE FROM schedules WHERE name = $1;`, name)
	if err != nil {
		log.Error().Err(err).Str("schedule", name).Msg("DeleteSchedule failed")
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
