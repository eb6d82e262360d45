// Package profile turns stage-based growth profiles into concrete
// calendar events and keeps the on-disk profile catalog indexed.
package profile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GrowthProfile is the operator-authored plan for one crop. The format
// is consumed as-is; sections the author left out simply contribute
// zero stages.
type GrowthProfile struct {
	PlantInfo   PlantInfo       `json:"plant_info"`
	Nutrition   Nutrition       `json:"nutrition"`
	WaterChange WaterChangePlan `json:"water_change_schedule"`
}

type PlantInfo struct {
	Name string `json:"name"`
}

type Nutrition struct {
	FeedingSchedule []FeedingStage `json:"feeding_schedule"`
}

// FeedingStage covers days [DayStart, DayEnd) relative to the crop
// start date. FrequencyPerWeek may be fractional; zero means the stage
// gets no feeding events at all.
type FeedingStage struct {
	Stage            string  `json:"stage"`
	DayStart         int     `json:"day_start"`
	DayEnd           int     `json:"day_end"`
	Concentration    float64 `json:"concentration_ml_per_liter"`
	FrequencyPerWeek float64 `json:"frequency_per_week"`
	Notes            string  `json:"notes"`
}

type WaterChangePlan struct {
	Schedule  []WaterChangeStage `json:"schedule"`
	Procedure Procedure          `json:"procedure"`
}

// WaterChangeStage steps through [DayStart, DayEnd) every IntervalDays.
type WaterChangeStage struct {
	Stage        string `json:"stage"`
	DayStart     int    `json:"day_start"`
	DayEnd       int    `json:"day_end"`
	IntervalDays int    `json:"interval_days"`
	Notes        string `json:"notes"`
}

// Procedure holds the global drain-and-fill parameters. Nil fields fall
// back to the fleet defaults.
type Procedure struct {
	DrainTargetMM   *int `json:"drain_target_mm"`
	RefillTargetMM  *int `json:"refill_target_mm"`
	SettlingMinutes *int `json:"post_change_settling_minutes"`
}

const (
	defaultDrainTargetMM   = 75
	defaultRefillTargetMM  = 57
	defaultSettlingMinutes = 5
)

func (p Procedure) drainTarget() int {
	if p.DrainTargetMM != nil {
		return *p.DrainTargetMM
	}
	return defaultDrainTargetMM
}

func (p Procedure) refillTarget() int {
	if p.RefillTargetMM != nil {
		return *p.RefillTargetMM
	}
	return defaultRefillTargetMM
}

func (p Procedure) settlingMinutes() int {
	if p.SettlingMinutes != nil {
		return *p.SettlingMinutes
	}
	return defaultSettlingMinutes
}

// Parse decodes a profile document.
func Parse(data []byte) (GrowthProfile, error) {
	var p GrowthProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return GrowthProfile{}, fmt.Errorf("parse growth profile: %w", err)
	}
	return p, nil
}

// titleCase renders a stage key like "early_veg" as "Early Veg" for
// event titles.
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
