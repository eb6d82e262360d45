package profile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/model"
)

const (
	dosingHour      = 9
	dosingMinutes   = 5
	waterHour       = 10
	waterMinutes    = 15
	dosingColor     = "#9b59b6"
	waterColor      = "#3498db"
	defaultDoseML   = 750
	defaultDoseRate = 100
)

// Counts reports how many events a materialization run persisted per
// category.
type Counts struct {
	DosingEvents      int `json:"dosing_events"`
	WaterChangeEvents int `json:"water_change_events"`
}

// Materializer expands a growth profile into dated calendar events and
// persists them through the event store. Event times are fixed to the
// scheduler's location.
type Materializer struct {
	store db.Store
	loc   *time.Location
}

func NewMaterializer(store db.Store, loc *time.Location) *Materializer {
	if loc == nil {
		loc = time.Local
	}
	return &Materializer{store: store, loc: loc}
}

// MaterializeAll runs both walks. Inserts are best effort: a store
// failure on one event is logged and skipped, never rolling back the
// events already created. The first error is returned alongside the
// counts of what did get persisted.
func (m *Materializer) MaterializeAll(p GrowthProfile, deviceName string, start time.Time) (Counts, error) {
	var counts Counts
	var firstErr error

	counts.DosingEvents, firstErr = m.DosingEvents(p, deviceName, start)

	n, err := m.WaterChangeEvents(p, deviceName, start)
	counts.WaterChangeEvents = n
	if firstErr == nil {
		firstErr = err
	}

	log.Info().
		Str("device", deviceName).
		Str("plant", p.PlantInfo.Name).
		Int("dosing_events", counts.DosingEvents).
		Int("water_change_events", counts.WaterChangeEvents).
		Msg("profile materialized")
	return counts, firstErr
}

// DosingEvents walks each feeding stage over [day_start, day_end),
// stepping 7/frequency_per_week days. The half-open interval keeps a
// day sitting exactly on a stage boundary from being scheduled twice.
// Emission day k is computed as day_start + k*(7/f) and floored to a
// day boundary, so fractional steps never accumulate drift.
func (m *Materializer) DosingEvents(p GrowthProfile, deviceName string, start time.Time) (int, error) {
	created := 0
	var firstErr error

	for _, stage := range p.Nutrition.FeedingSchedule {
		if stage.FrequencyPerWeek <= 0 {
			continue
		}
		step := 7 / stage.FrequencyPerWeek

		for k := 0; ; k++ {
			day := float64(stage.DayStart) + float64(k)*step
			if day >= float64(stage.DayEnd) {
				break
			}

			params, err := json.Marshal(map[string]any{
				"dose":          defaultDoseML,
				"speed":         defaultDoseRate,
				"concentration": stage.Concentration,
				"stage":         stage.Stage,
			})
			if err != nil {
				return created, err
			}

			commandType := model.CommandDose
			ev := model.CalendarEvent{
				DeviceName:      deviceName,
				EventType:       model.EventTypeDosing,
				Title:           fmt.Sprintf("%s - %s Feeding", p.PlantInfo.Name, titleCase(stage.Stage)),
				Description:     fmt.Sprintf("%gml/L - %s", stage.Concentration, stage.Notes),
				ScheduledTime:   m.eventTime(start, int(day), dosingHour),
				DurationMinutes: dosingMinutes,
				CommandType:     &commandType,
				CommandParams:   params,
				Recurrence:      model.RecurrenceNone,
				Enabled:         true,
				Color:           dosingColor,
			}

			if _, err := m.store.CreateEvent(ev); err != nil {
				log.Error().Err(err).Str("device", deviceName).Time("scheduled", ev.ScheduledTime).Msg("skipping dosing event, insert failed")
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			created++
		}
	}
	return created, firstErr
}

// WaterChangeEvents walks each water-change stage over the same
// half-open interval, stepping the stage's fixed interval_days.
func (m *Materializer) WaterChangeEvents(p GrowthProfile, deviceName string, start time.Time) (int, error) {
	created := 0
	var firstErr error
	procedure := p.WaterChange.Procedure

	for _, stage := range p.WaterChange.Schedule {
		if stage.IntervalDays <= 0 {
			continue
		}

		for day := stage.DayStart; day < stage.DayEnd; day += stage.IntervalDays {
			params, err := json.Marshal(map[string]any{
				"drain_target_mm":  procedure.drainTarget(),
				"refill_target_mm": procedure.refillTarget(),
				"settling_minutes": procedure.settlingMinutes(),
				"stage":            stage.Stage,
			})
			if err != nil {
				return created, err
			}

			commandType := model.CommandDrainAndFill
			ev := model.CalendarEvent{
				DeviceName:      deviceName,
				EventType:       model.EventTypeWaterChange,
				Title:           fmt.Sprintf("%s - %s Water Change", p.PlantInfo.Name, titleCase(stage.Stage)),
				Description:     fmt.Sprintf("Drain & refill reservoir - %s", stage.Notes),
				ScheduledTime:   m.eventTime(start, day, waterHour),
				DurationMinutes: waterMinutes,
				CommandType:     &commandType,
				CommandParams:   params,
				Recurrence:      model.RecurrenceNone,
				Enabled:         true,
				Color:           waterColor,
			}

			if _, err := m.store.CreateEvent(ev); err != nil {
				log.Error().Err(err).Str("device", deviceName).Time("scheduled", ev.ScheduledTime).Msg("skipping water change event, insert failed")
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			created++
		}
	}
	return created, firstErr
}

func (m *Materializer) eventTime(start time.Time, dayOffset, hour int) time.Time {
	day := start.In(m.loc).AddDate(0, 0, dayOffset)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, m.loc)
}
