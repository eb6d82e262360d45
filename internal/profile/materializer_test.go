package profile

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/model"
)

// eventStore records created events; failAt makes the n-th insert
// (1-based) fail once.
type eventStore struct {
	db.Store
	mu     sync.Mutex
	events []model.CalendarEvent
	calls  int
	failAt int
}

func (s *eventStore) CreateEvent(ev model.CalendarEvent) (model.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt != 0 && s.calls == s.failAt {
		return model.CalendarEvent{}, errors.New("insert rejected")
	}
	ev.ID = len(s.events) + 1
	s.events = append(s.events, ev)
	return ev, nil
}

func feedingProfile(stages ...FeedingStage) GrowthProfile {
	return GrowthProfile{
		PlantInfo: PlantInfo{Name: "Basil"},
		Nutrition: Nutrition{FeedingSchedule: stages},
	}
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDosingEventsExample(t *testing.T) {
	store := &eventStore{}
	m := NewMaterializer(store, time.UTC)

	p := feedingProfile(FeedingStage{
		Stage:            "seedling",
		DayStart:         0,
		DayEnd:           14,
		Concentration:    1.5,
		FrequencyPerWeek: 2,
		Notes:            "half strength",
	})

	n, err := m.DosingEvents(p, "pod-a", start)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	// twice a week steps 3.5 days; fractional days floor to the day
	wantDays := []int{1, 4, 8, 11}
	for i, ev := range store.events {
		assert.Equal(t, time.January, ev.ScheduledTime.Month())
		assert.Equal(t, wantDays[i], ev.ScheduledTime.Day())
		assert.Equal(t, 9, ev.ScheduledTime.Hour())
		assert.Equal(t, 5, ev.DurationMinutes)
		assert.Equal(t, model.EventTypeDosing, ev.EventType)
		// day 14 is the next stage's first day, never this stage's
		assert.True(t, ev.ScheduledTime.Before(start.AddDate(0, 0, 14)))
	}

	first := store.events[0]
	assert.Equal(t, "Basil - Seedling Feeding", first.Title)
	assert.Equal(t, "1.5ml/L - half strength", first.Description)
	require.NotNil(t, first.CommandType)
	assert.Equal(t, model.CommandDose, *first.CommandType)
	assert.Equal(t, "#9b59b6", first.Color)

	var params map[string]any
	require.NoError(t, json.Unmarshal(first.CommandParams, &params))
	assert.EqualValues(t, 750, params["dose"])
	assert.EqualValues(t, 100, params["speed"])
	assert.EqualValues(t, 1.5, params["concentration"])
	assert.Equal(t, "seedling", params["stage"])
}

func TestDosingEventCounts(t *testing.T) {
	cases := []struct {
		name     string
		dayStart int
		dayEnd   int
		freq     float64
	}{
		{"daily for a week", 0, 7, 7},
		{"three per week", 0, 21, 3},
		{"once a week", 7, 35, 1},
		{"fractional frequency", 0, 30, 1.5},
		{"single day window", 5, 6, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &eventStore{}
			m := NewMaterializer(store, time.UTC)
			p := feedingProfile(FeedingStage{
				Stage:            "stage",
				DayStart:         tc.dayStart,
				DayEnd:           tc.dayEnd,
				FrequencyPerWeek: tc.freq,
			})

			n, err := m.DosingEvents(p, "pod-a", start)
			require.NoError(t, err)

			step := 7 / tc.freq
			want := int(math.Ceil(float64(tc.dayEnd-tc.dayStart) / step))
			assert.Equal(t, want, n)

			// no event lands on or after the stage end
			for _, ev := range store.events {
				assert.True(t, ev.ScheduledTime.Before(start.AddDate(0, 0, tc.dayEnd)))
			}
		})
	}
}

func TestDosingSkipsZeroFrequencyStage(t *testing.T) {
	store := &eventStore{}
	m := NewMaterializer(store, time.UTC)
	p := feedingProfile(
		FeedingStage{Stage: "dormant", DayStart: 0, DayEnd: 14, FrequencyPerWeek: 0},
		FeedingStage{Stage: "active", DayStart: 14, DayEnd: 21, FrequencyPerWeek: 7},
	)

	n, err := m.DosingEvents(p, "pod-a", start)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	for _, ev := range store.events {
		assert.GreaterOrEqual(t, ev.ScheduledTime.Day(), 15)
	}
}

func TestWaterChangeEvents(t *testing.T) {
	store := &eventStore{}
	m := NewMaterializer(store, time.UTC)

	drain, refill, settle := 80, 60, 10
	p := GrowthProfile{
		PlantInfo: PlantInfo{Name: "Basil"},
		WaterChange: WaterChangePlan{
			Schedule: []WaterChangeStage{
				{Stage: "veg", DayStart: 0, DayEnd: 15, IntervalDays: 7, Notes: "weekly"},
			},
			Procedure: Procedure{DrainTargetMM: &drain, RefillTargetMM: &refill, SettlingMinutes: &settle},
		},
	}

	n, err := m.WaterChangeEvents(p, "pod-a", start)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// days 0, 7, 14; day 15 excluded by the half-open interval
	wantDays := []int{1, 8, 15}
	for i, ev := range store.events {
		assert.Equal(t, wantDays[i], ev.ScheduledTime.Day())
		assert.Equal(t, 10, ev.ScheduledTime.Hour())
		assert.Equal(t, 15, ev.DurationMinutes)
		assert.Equal(t, model.EventTypeWaterChange, ev.EventType)
	}

	first := store.events[0]
	assert.Equal(t, "Basil - Veg Water Change", first.Title)
	require.NotNil(t, first.CommandType)
	assert.Equal(t, model.CommandDrainAndFill, *first.CommandType)
	assert.Equal(t, "#3498db", first.Color)

	var params map[string]any
	require.NoError(t, json.Unmarshal(first.CommandParams, &params))
	assert.EqualValues(t, 80, params["drain_target_mm"])
	assert.EqualValues(t, 60, params["refill_target_mm"])
	assert.EqualValues(t, 10, params["settling_minutes"])
}

func TestWaterChangeProcedureDefaults(t *testing.T) {
	store := &eventStore{}
	m := NewMaterializer(store, time.UTC)
	p := GrowthProfile{
		WaterChange: WaterChangePlan{
			Schedule: []WaterChangeStage{{Stage: "veg", DayStart: 0, DayEnd: 1, IntervalDays: 3}},
		},
	}

	_, err := m.WaterChangeEvents(p, "pod-a", start)
	require.NoError(t, err)
	require.Len(t, store.events, 1)

	var params map[string]any
	require.NoError(t, json.Unmarshal(store.events[0].CommandParams, &params))
	assert.EqualValues(t, 75, params["drain_target_mm"])
	assert.EqualValues(t, 57, params["refill_target_mm"])
	assert.EqualValues(t, 5, params["settling_minutes"])
}

func TestMaterializeAllEmptyProfile(t *testing.T) {
	store := &eventStore{}
	m := NewMaterializer(store, time.UTC)

	// a profile missing both sections is zero stages, not a fault
	counts, err := m.MaterializeAll(GrowthProfile{}, "pod-a", start)
	require.NoError(t, err)
	assert.Zero(t, counts.DosingEvents)
	assert.Zero(t, counts.WaterChangeEvents)
}

func TestMaterializePartialFailureKeepsGoing(t *testing.T) {
	store := &eventStore{failAt: 2}
	m := NewMaterializer(store, time.UTC)
	p := feedingProfile(FeedingStage{Stage: "veg", DayStart: 0, DayEnd: 28, FrequencyPerWeek: 1})

	counts, err := m.MaterializeAll(p, "pod-a", start)
	require.Error(t, err)

	// four walks attempted, the second insert was rejected and skipped
	assert.Equal(t, 3, counts.DosingEvents)
	assert.Len(t, store.events, 3)
}
