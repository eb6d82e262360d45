package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdant-labs/growpod/internal/devices"
	"github.com/verdant-labs/growpod/internal/model"
)

func newTestRegistry(t *testing.T) (*Registry, *stubStore, *fakeClock) {
	t.Helper()
	store := newStubStore()
	clock := newFakeClock()
	engine := NewEngine(store, devices.NewRegistry(), &fakeDispatcher{}, clock, EngineConfig{Workers: 1})
	registry := NewRegistry(store, nil, engine, time.UTC)
	t.Cleanup(registry.Stop)
	return registry, store, clock
}

func TestRegisterInstallsTrigger(t *testing.T) {
	registry, store, _ := newTestRegistry(t)

	def := testDefinition("morning-flood", "pod-a")
	stored, err := registry.Register(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, "morning-flood", stored.Name)
	assert.True(t, registry.Triggered("morning-flood"))

	// persisted alongside the trigger
	_, ok := store.schedules["morning-flood"]
	assert.True(t, ok)
}

func TestRegisterRejectsInvalidDefinitions(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	t.Run("weekly without day", func(t *testing.T) {
		def := testDefinition("weekly-dose", "pod-a")
		def.Frequency = model.FrequencyWeekly
		_, err := registry.Register(context.Background(), def)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "day_of_week", verr.Field)
		assert.False(t, registry.Triggered("weekly-dose"))
	})

	t.Run("weekly with day", func(t *testing.T) {
		day := "friday"
		def := testDefinition("weekly-dose", "pod-a")
		def.Frequency = model.FrequencyWeekly
		def.DayOfWeek = &day
		_, err := registry.Register(context.Background(), def)
		require.NoError(t, err)
		assert.True(t, registry.Triggered("weekly-dose"))
	})

	t.Run("empty actions", func(t *testing.T) {
		def := testDefinition("no-actions", "pod-a")
		def.Actions = nil
		_, err := registry.Register(context.Background(), def)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "actions", verr.Field)
	})
}

func TestRegisterIsIdempotentPerName(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	def := testDefinition("morning-flood", "pod-a")
	_, err := registry.Register(context.Background(), def)
	require.NoError(t, err)

	// re-register with a different time: exactly one live trigger remains
	def.StartTime = "07:45"
	_, err = registry.Register(context.Background(), def)
	require.NoError(t, err)

	assert.Len(t, registry.cron.Entries(), 1)
	assert.Len(t, registry.entries, 1)
}

func TestReRegisterCancelsPendingRetry(t *testing.T) {
	registry, _, clock := newTestRegistry(t)

	def := testDefinition("morning-flood", "pod-a")
	_, err := registry.Register(context.Background(), def)
	require.NoError(t, err)

	// device absent: fire leaves a pending retry behind
	registry.engine.Fire(def)
	require.Eventually(t, func() bool { return len(clock.pending()) == 1 }, waitFor, time.Millisecond)

	_, err = registry.Register(context.Background(), def)
	require.NoError(t, err)

	registry.engine.mu.Lock()
	_, retryPending := registry.engine.retries["morning-flood"]
	registry.engine.mu.Unlock()
	assert.False(t, retryPending)
}

func TestUnregister(t *testing.T) {
	registry, store, _ := newTestRegistry(t)

	def := testDefinition("morning-flood", "pod-a")
	_, err := registry.Register(context.Background(), def)
	require.NoError(t, err)

	require.NoError(t, registry.Unregister(context.Background(), "morning-flood"))
	assert.False(t, registry.Triggered("morning-flood"))
	assert.Empty(t, store.schedules)

	t.Run("unknown name reports not found", func(t *testing.T) {
		err := registry.Unregister(context.Background(), "no-such-schedule")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRestoreInstallsEnabledOnly(t *testing.T) {
	registry, store, _ := newTestRegistry(t)

	enabled := testDefinition("morning-flood", "pod-a")
	disabled := testDefinition("paused-dose", "pod-b")
	disabled.Enabled = false
	store.schedules[enabled.Name] = enabled
	store.schedules[disabled.Name] = disabled

	require.NoError(t, registry.Restore(context.Background()))
	assert.True(t, registry.Triggered("morning-flood"))
	assert.False(t, registry.Triggered("paused-dose"))
}

func TestTrackerSuspendsAndResumes(t *testing.T) {
	registry, store, clock := newTestRegistry(t)
	tracker := NewTracker(store, registry)

	def := testDefinition("morning-flood", "pod-a")
	_, err := registry.Register(context.Background(), def)
	require.NoError(t, err)

	// leave a retry pending so removal has something to cancel
	registry.engine.Fire(def)
	require.Eventually(t, func() bool { return len(clock.pending()) == 1 }, waitFor, time.Millisecond)

	tracker.DeviceRemoved("pod-a")
	assert.False(t, registry.Triggered("morning-flood"))
	assert.True(t, clock.pending()[0].isStopped())

	// definition survives suspension
	_, ok := store.schedules["morning-flood"]
	require.True(t, ok)

	tracker.DeviceAdded("pod-a")
	assert.True(t, registry.Triggered("morning-flood"))
}

func TestDeviceArrivalKeepsPendingRetry(t *testing.T) {
	store := newStubStore()
	clock := newFakeClock()
	directory := devices.NewRegistry()
	dispatcher := &fakeDispatcher{}
	engine := NewEngine(store, directory, dispatcher, clock, EngineConfig{Workers: 1})
	registry := NewRegistry(store, nil, engine, time.UTC)
	t.Cleanup(registry.Stop)
	tracker := NewTracker(store, registry)

	def := testDefinition("morning-flood", "pod-a")
	_, err := registry.Register(context.Background(), def)
	require.NoError(t, err)

	// fire with the device absent: a retry is armed
	registry.engine.Fire(def)
	require.Eventually(t, func() bool { return len(clock.pending()) == 1 }, waitFor, time.Millisecond)

	// the device announces itself; the trigger comes back and the
	// retry stays armed
	directory.MarkPresent(devices.Device{Name: "pod-a", Address: "10.0.0.12", Port: 8443})
	tracker.DeviceAdded("pod-a")
	assert.True(t, registry.Triggered("morning-flood"))
	require.False(t, clock.pending()[0].isStopped())

	// the missed fire dispatches exactly once when the retry comes due
	clock.pending()[0].fire()
	require.Eventually(t, func() bool { return dispatcher.callCount() == 1 }, waitFor, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, dispatcher.callCount())
	require.Eventually(t, func() bool { return len(store.logEntries()) == 1 }, waitFor, time.Millisecond)
	assert.True(t, store.logEntries()[0].Success)
}

func TestTrackerIgnoresDisabledSchedules(t *testing.T) {
	registry, store, _ := newTestRegistry(t)
	tracker := NewTracker(store, registry)

	def := testDefinition("paused-dose", "pod-a")
	def.Enabled = false
	store.schedules[def.Name] = def

	tracker.DeviceAdded("pod-a")
	assert.False(t, registry.Triggered("paused-dose"))
}
