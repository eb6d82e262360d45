package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/dispatch"
	"github.com/verdant-labs/growpod/internal/model"
)

// fakeClock captures timers instead of waiting for them so tests can
// fire retry and auto-off callbacks on demand.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped {
		t.fn()
	}
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{d: d, fn: fn}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*fakeTimer, len(c.timers))
	copy(out, c.timers)
	return out
}

func (c *fakeClock) lastTimer() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

// fakeDispatcher records every command and answers from a scripted
// failure set.
type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatch.Command
	fail  map[string]string // actuator -> error message
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ string, _ int, cmd dispatch.Command) dispatch.Result {
	d.mu.Lock()
	d.calls = append(d.calls, cmd)
	d.mu.Unlock()
	if msg, ok := d.fail[cmd.Actuator]; ok {
		return dispatch.Result{Actuator: cmd.Actuator, Error: msg}
	}
	return dispatch.Result{Actuator: cmd.Actuator, Success: true}
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDispatcher) commands() []dispatch.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatch.Command, len(d.calls))
	copy(out, d.calls)
	return out
}

// stubStore implements the slices of db.Store the scheduler touches.
// Everything else panics through the embedded nil interface.
type stubStore struct {
	db.Store
	mu        sync.Mutex
	logs      []model.ExecutionLogEntry
	schedules map[string]model.ScheduleDefinition
	listErr   error
}

func newStubStore() *stubStore {
	return &stubStore{schedules: make(map[string]model.ScheduleDefinition)}
}

func (s *stubStore) CreateExecutionLog(entry model.ExecutionLogEntry) (model.ExecutionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = len(s.logs) + 1
	s.logs = append(s.logs, entry)
	return entry, nil
}

func (s *stubStore) logEntries() []model.ExecutionLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ExecutionLogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *stubStore) UpsertSchedule(def model.ScheduleDefinition) (model.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[def.Name] = def
	return def, nil
}

func (s *stubStore) GetSchedule(name string) (model.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.schedules[name]
	if !ok {
		return model.ScheduleDefinition{}, sql.ErrNoRows
	}
	return def, nil
}

func (s *stubStore) ListSchedules() ([]model.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.ScheduleDefinition, 0, len(s.schedules))
	for _, def := range s.schedules {
		out = append(out, def)
	}
	return out, nil
}

func (s *stubStore) ListSchedulesForDevice(deviceName string) ([]model.ScheduleDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScheduleDefinition
	for _, def := range s.schedules {
		if def.DeviceName == deviceName {
			out = append(out, def)
		}
	}
	return out, nil
}

func (s *stubStore) DeleteSchedule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[name]; !ok {
		return sql.ErrNoRows
	}
	delete(s.schedules, name)
	return nil
}

func testDefinition(name, device string) model.ScheduleDefinition {
	return model.ScheduleDefinition{
		Name:       name,
		DeviceName: device,
		StartTime:  "06:30",
		Frequency:  model.FrequencyDaily,
		Actions: map[string]json.RawMessage{
			"waterpump": json.RawMessage(`{"value": 80}`),
		},
		Enabled: true,
	}
}
