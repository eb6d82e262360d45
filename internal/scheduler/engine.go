// Package scheduler owns all recurring-job state: the cron-backed
// registry of schedule definitions, the execution engine that runs
// fires against devices, and the tracker that reacts to devices
// arriving and leaving.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/devices"
	"github.com/verdant-labs/growpod/internal/dispatch"
	"github.com/verdant-labs/growpod/internal/model"
)

const (
	defaultDispatchTimeout = 5 * time.Second
	retryDelay             = 10 * time.Second
)

// offPayloads maps each actuator kind to the command that returns it to
// a safe state. Pumps take proportional values, the solenoid a binary
// state, the LED a named state. Actuators missing from this table are
// skipped at auto-off time with a warning.
var offPayloads = map[string]json.RawMessage{
	"airpump":   json.RawMessage(`{"value": 0}`),
	"waterpump": json.RawMessage(`{"value": 0}`),
	"dosepump":  json.RawMessage(`{"value": 0}`),
	"solenoid":  json.RawMessage(`{"state": 0}`),
	"led":       json.RawMessage(`{"state": "off"}`),
}

type taskKind int

const (
	taskFire taskKind = iota
	taskAutoOff
)

// gen stamps the task with the schedule's generation at enqueue time so
// a run queued just before unregistration is dropped instead of
// dispatching into a schedule that no longer exists.
type task struct {
	kind   taskKind
	def    model.ScheduleDefinition
	fireID string
	gen    uint64
}

// fireRecord is the response_data document written with each execution
// log entry for a schedule-driven run.
type fireRecord struct {
	FireID   string            `json:"fire_id"`
	Schedule string            `json:"schedule"`
	Device   string            `json:"device"`
	Phase    string            `json:"phase"`
	Results  []dispatch.Result `json:"results,omitempty"`
}

// Engine runs schedule fires on a bounded worker pool. Cron entries and
// timers only enqueue; all device I/O happens on the workers. Retry and
// auto-off timers are held in maps keyed by schedule name so that
// unregistration or device removal can cancel them.
type Engine struct {
	store           db.Store
	directory       devices.Directory
	dispatcher      dispatch.Dispatcher
	clock           Clock
	dispatchTimeout time.Duration

	mu       sync.Mutex
	running  map[string]bool
	retries  map[string]Timer
	autoOffs map[string]Timer
	retrying map[string]bool
	gens     map[string]uint64

	tasks chan task
	quit  chan struct{}
	wg    sync.WaitGroup
}

// EngineConfig tunes the engine. Zero values fall back to defaults.
type EngineConfig struct {
	Workers         int
	DispatchTimeout time.Duration
}

func NewEngine(store db.Store, directory devices.Directory, dispatcher dispatch.Dispatcher, clock Clock, cfg EngineConfig) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}

	e := &Engine{
		store:           store,
		directory:       directory,
		dispatcher:      dispatcher,
		clock:           clock,
		dispatchTimeout: timeout,
		running:         make(map[string]bool),
		retries:         make(map[string]Timer),
		autoOffs:        make(map[string]Timer),
		retrying:        make(map[string]bool),
		gens:            make(map[string]uint64),
		tasks:           make(chan task, 64),
		quit:            make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.quit:
			return
		case t := <-e.tasks:
			switch t.kind {
			case taskFire:
				e.runFire(t.def, t.gen)
			case taskAutoOff:
				e.runAutoOff(t.def, t.fireID, t.gen)
			}
		}
	}
}

// Fire enqueues one run of the schedule. Called by cron entries and by
// retry timers; never blocks the caller.
func (e *Engine) Fire(def model.ScheduleDefinition) {
	e.mu.Lock()
	gen := e.gens[def.Name]
	e.mu.Unlock()
	e.enqueue(task{kind: taskFire, def: def, gen: gen})
}

func (e *Engine) enqueue(t task) {
	select {
	case <-e.quit:
	case e.tasks <- t:
	default:
		log.Error().Str("schedule", t.def.Name).Msg("task queue full, dropping run")
	}
}

// CancelTimers stops any pending retry and auto-off for the schedule
// and invalidates runs already sitting in the queue for the name.
// Called under re-registration, unregistration, and device removal so
// no timer can fire into a schedule that no longer wants it.
func (e *Engine) CancelTimers(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelTimersLocked(name)
}

func (e *Engine) cancelTimersLocked(name string) {
	if t, ok := e.retries[name]; ok {
		t.Stop()
		delete(e.retries, name)
	}
	if t, ok := e.autoOffs[name]; ok {
		t.Stop()
		delete(e.autoOffs, name)
	}
	delete(e.retrying, name)
	e.gens[name]++
}

// Stop cancels all timers and shuts the worker pool down.
func (e *Engine) Stop() {
	close(e.quit)
	e.wg.Wait()

	e.mu.Lock()
	for name := range e.retries {
		e.retries[name].Stop()
		delete(e.retries, name)
	}
	for name := range e.autoOffs {
		e.autoOffs[name].Stop()
		delete(e.autoOffs, name)
	}
	e.mu.Unlock()
}

// runFire is one pass of the execution state machine: resolve the
// device, dispatch every action, then arm the auto-off if configured.
func (e *Engine) runFire(def model.ScheduleDefinition, gen uint64) {
	e.mu.Lock()
	if gen != e.gens[def.Name] {
		e.mu.Unlock()
		log.Debug().Str("schedule", def.Name).Msg("dropping queued run for a replaced schedule")
		return
	}
	if e.running[def.Name] {
		e.mu.Unlock()
		log.Warn().Str("schedule", def.Name).Msg("previous run still in flight, skipping fire")
		return
	}
	e.running[def.Name] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.running, def.Name)
		e.mu.Unlock()
	}()

	device, ok := e.directory.Lookup(def.DeviceName)
	if !ok {
		e.scheduleRetry(def)
		return
	}

	// Device came back; a pending retry for this name is now moot.
	e.mu.Lock()
	if t, ok := e.retries[def.Name]; ok {
		t.Stop()
		delete(e.retries, def.Name)
	}
	delete(e.retrying, def.Name)
	e.mu.Unlock()

	fireID := uuid.NewString()
	results := e.dispatchActions(device, def.Actions)

	success := true
	for _, r := range results {
		if !r.Success {
			success = false
			log.Warn().
				Str("schedule", def.Name).
				Str("actuator", r.Actuator).
				Str("error", r.Error).
				Msg("actuator dispatch failed")
		}
	}

	e.recordExecution(def, fireID, "dispatch", success, results, nil)
	log.Info().
		Str("schedule", def.Name).
		Str("device", def.DeviceName).
		Str("fire_id", fireID).
		Bool("success", success).
		Msg("schedule fired")

	if def.DurationMinutes > 0 {
		e.armAutoOff(def, fireID)
	}
}

// scheduleRetry arms a single cancellable retry of the same fire. The
// device not being discovered yet is not a failure, so nothing is
// written to the execution log; the first miss logs at info, repeats in
// the same cycle at debug to keep the log quiet.
func (e *Engine) scheduleRetry(def model.ScheduleDefinition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retrying[def.Name] {
		log.Debug().Str("schedule", def.Name).Str("device", def.DeviceName).Msg("device still unreachable, retrying")
	} else {
		log.Info().Str("schedule", def.Name).Str("device", def.DeviceName).Msg("device unreachable, will retry")
		e.retrying[def.Name] = true
	}

	if t, ok := e.retries[def.Name]; ok {
		t.Stop()
	}
	e.retries[def.Name] = e.clock.AfterFunc(retryDelay, func() {
		e.Fire(def)
	})
}

func (e *Engine) armAutoOff(def model.ScheduleDefinition, fireID string) {
	duration := time.Duration(def.DurationMinutes) * time.Minute

	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.autoOffs[def.Name]; ok {
		t.Stop()
	}
	e.autoOffs[def.Name] = e.clock.AfterFunc(duration, func() {
		e.mu.Lock()
		gen := e.gens[def.Name]
		e.mu.Unlock()
		e.enqueue(task{kind: taskAutoOff, def: def, fireID: fireID, gen: gen})
	})
}

// runAutoOff returns every actuator of the fire to its off state. Best
// effort only: if the device is gone or a command fails, the failure is
// logged and never retried.
func (e *Engine) runAutoOff(def model.ScheduleDefinition, fireID string, gen uint64) {
	e.mu.Lock()
	if gen != e.gens[def.Name] {
		e.mu.Unlock()
		return
	}
	delete(e.autoOffs, def.Name)
	e.mu.Unlock()

	device, ok := e.directory.Lookup(def.DeviceName)
	if !ok {
		msg := "device unreachable at auto-off"
		log.Warn().Str("schedule", def.Name).Str("device", def.DeviceName).Msg(msg)
		e.recordExecution(def, fireID, "auto_off", false, nil, &msg)
		return
	}

	offActions := make(map[string]json.RawMessage, len(def.Actions))
	for actuator := range def.Actions {
		payload, known := offPayloads[actuator]
		if !known {
			log.Warn().
				Str("schedule", def.Name).
				Str("actuator", actuator).
				Msg("no off command known for actuator, leaving it as dispatched")
			continue
		}
		offActions[actuator] = payload
	}

	results := e.dispatchActions(device, offActions)
	success := true
	for _, r := range results {
		if !r.Success {
			success = false
		}
	}

	e.recordExecution(def, fireID, "auto_off", success, results, nil)
	log.Info().
		Str("schedule", def.Name).
		Str("fire_id", fireID).
		Bool("success", success).
		Msg("auto-off dispatched")
}

// dispatchActions sends each actuator command independently with its
// own timeout. One slow or failing actuator never blocks the others.
func (e *Engine) dispatchActions(device devices.Device, actions map[string]json.RawMessage) []dispatch.Result {
	results := make([]dispatch.Result, 0, len(actions))
	for actuator, params := range actions {
		ctx, cancel := context.WithTimeout(context.Background(), e.dispatchTimeout)
		result := e.dispatcher.Dispatch(ctx, device.Address, device.Port, dispatch.Command{
			Actuator: actuator,
			Params:   params,
		})
		cancel()
		results = append(results, result)
	}
	return results
}

func (e *Engine) recordExecution(def model.ScheduleDefinition, fireID, phase string, success bool, results []dispatch.Result, errMsg *string) {
	data, err := json.Marshal(fireRecord{
		FireID:   fireID,
		Schedule: def.Name,
		Device:   def.DeviceName,
		Phase:    phase,
		Results:  results,
	})
	if err != nil {
		log.Error().Err(err).Str("schedule", def.Name).Msg("encode execution record")
		data = nil
	}

	entry := model.ExecutionLogEntry{
		ExecutionTime: e.clock.Now(),
		Success:       success,
		ErrorMessage:  errMsg,
		ResponseData:  data,
	}
	if _, err := e.store.CreateExecutionLog(entry); err != nil {
		log.Error().Err(err).Str("schedule", def.Name).Msg("write execution log")
	}
}
