package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/model"
)

// Mirror keeps a second durable copy of schedule definitions for crash
// recovery and operator inspection. Implemented by redis.ScheduleMirror.
type Mirror interface {
	SaveSchedule(ctx context.Context, def model.ScheduleDefinition) error
	DeleteSchedule(ctx context.Context, name string) error
	ListSchedules(ctx context.Context) ([]model.ScheduleDefinition, error)
}

// Registry owns one cron trigger per enabled schedule definition. All
// trigger mutations happen under one mutex, so a re-registration from
// the API can never race an availability-driven resume into two live
// triggers for the same name.
type Registry struct {
	store  db.Store
	mirror Mirror
	engine *Engine
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewRegistry(store db.Store, mirror Mirror, engine *Engine, loc *time.Location) *Registry {
	if loc == nil {
		loc = time.Local
	}
	r := &Registry{
		store:   store,
		mirror:  mirror,
		engine:  engine,
		cron:    cron.New(cron.WithLocation(loc)),
		entries: make(map[string]cron.EntryID),
	}
	return r
}

// Start begins firing triggers.
func (r *Registry) Start() { r.cron.Start() }

// Stop halts the cron loop and the engine, waiting for in-flight runs.
func (r *Registry) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.engine.Stop()
}

// Register validates and persists the definition, then atomically swaps
// its trigger. Re-registering an existing name replaces the old trigger
// and cancels its pending retry and auto-off timers; the old and new
// rule can never both be live.
func (r *Registry) Register(ctx context.Context, def model.ScheduleDefinition) (model.ScheduleDefinition, error) {
	if err := Validate(def); err != nil {
		return model.ScheduleDefinition{}, err
	}

	stored, err := r.store.UpsertSchedule(def)
	if err != nil {
		return model.ScheduleDefinition{}, fmt.Errorf("persist schedule %q: %w", def.Name, err)
	}

	if r.mirror != nil {
		if err := r.mirror.SaveSchedule(ctx, stored); err != nil {
			log.Warn().Err(err).Str("schedule", stored.Name).Msg("schedule mirror write failed")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeTriggerLocked(stored.Name)
	r.engine.CancelTimers(stored.Name)
	if stored.Enabled {
		if err := r.installTriggerLocked(stored); err != nil {
			return model.ScheduleDefinition{}, err
		}
	}
	return stored, nil
}

// Unregister cancels the trigger and all pending timers, then deletes
// the definition from the store and the mirror. Unknown names return
// ErrNotFound so bulk callers can treat them as a no-op.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.mu.Lock()
	r.removeTriggerLocked(name)
	r.mu.Unlock()
	r.engine.CancelTimers(name)

	if err := r.store.DeleteSchedule(name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete schedule %q: %w", name, err)
	}

	if r.mirror != nil {
		if err := r.mirror.DeleteSchedule(ctx, name); err != nil {
			log.Warn().Err(err).Str("schedule", name).Msg("schedule mirror delete failed")
		}
	}

	log.Info().Str("schedule", name).Msg("schedule unregistered")
	return nil
}

// Install swaps in a trigger for an already-persisted definition. Used
// by Restore at boot and by the tracker when a device reappears. A
// pending retry stays armed, so a fire that missed the absent device
// still dispatches when its retry comes due.
func (r *Registry) Install(def model.ScheduleDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeTriggerLocked(def.Name)
	if !def.Enabled {
		return nil
	}
	return r.installTriggerLocked(def)
}

// Suspend cancels the live trigger and pending timers without touching
// the stored definition. Unknown names are a no-op.
func (r *Registry) Suspend(name string) {
	r.mu.Lock()
	r.removeTriggerLocked(name)
	r.mu.Unlock()
	r.engine.CancelTimers(name)
}

// Triggered reports whether a live trigger exists for the name.
func (r *Registry) Triggered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok
}

// Restore reloads all enabled definitions and installs their triggers.
// Cron computes each next fire time from the wall clock and the rule,
// so a restart never skips or doubles a schedule. If the database is
// down the redis mirror is used instead.
func (r *Registry) Restore(ctx context.Context) error {
	defs, err := r.store.ListSchedules()
	if err != nil {
		if r.mirror == nil {
			return fmt.Errorf("restore schedules: %w", err)
		}
		log.Warn().Err(err).Msg("store unavailable at restore, falling back to schedule mirror")
		defs, err = r.mirror.ListSchedules(ctx)
		if err != nil {
			return fmt.Errorf("restore schedules from mirror: %w", err)
		}
	}

	restored := 0
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if err := r.Install(def); err != nil {
			log.Error().Err(err).Str("schedule", def.Name).Msg("could not restore schedule trigger")
			continue
		}
		restored++
	}
	log.Info().Int("count", restored).Msg("schedule triggers restored")
	return nil
}

func (r *Registry) installTriggerLocked(def model.ScheduleDefinition) error {
	spec := cronSpec(def)
	id, err := r.cron.AddFunc(spec, func() { r.engine.Fire(def) })
	if err != nil {
		return fmt.Errorf("install trigger for %q: %w", def.Name, err)
	}
	r.entries[def.Name] = id
	log.Info().
		Str("schedule", def.Name).
		Str("device", def.DeviceName).
		Str("cron", spec).
		Msg("schedule trigger installed")
	return nil
}

// removeTriggerLocked drops only the cron entry. Whether pending timers
// survive is the caller's call: re-registration, unregistration, and
// suspension cancel them; a device-arrival re-install keeps them.
func (r *Registry) removeTriggerLocked(name string) {
	if id, ok := r.entries[name]; ok {
		r.cron.Remove(id)
		delete(r.entries, name)
	}
}
