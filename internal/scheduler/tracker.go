package scheduler

import (
	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/db"
)

// Tracker reacts to devices joining and leaving the network. A device
// arriving re-installs triggers for the enabled schedules bound to it,
// which covers schedules defined before their device was ever seen. A
// device leaving suspends those triggers and cancels pending retry and
// auto-off timers; the stored definitions are never touched.
type Tracker struct {
	store    db.Store
	registry *Registry
}

func NewTracker(store db.Store, registry *Registry) *Tracker {
	return &Tracker{store: store, registry: registry}
}

func (t *Tracker) DeviceAdded(deviceName string) {
	defs, err := t.store.ListSchedulesForDevice(deviceName)
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("could not load schedules for arriving device")
		return
	}

	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if err := t.registry.Install(def); err != nil {
			log.Error().Err(err).Str("schedule", def.Name).Msg("could not re-install trigger for arriving device")
			continue
		}
		log.Info().Str("schedule", def.Name).Str("device", deviceName).Msg("trigger re-installed for arriving device")
	}
}

func (t *Tracker) DeviceRemoved(deviceName string) {
	defs, err := t.store.ListSchedulesForDevice(deviceName)
	if err != nil {
		log.Error().Err(err).Str("device", deviceName).Msg("could not load schedules for departed device")
		return
	}

	for _, def := range defs {
		t.registry.Suspend(def.Name)
		log.Info().Str("schedule", def.Name).Str("device", deviceName).Msg("trigger suspended, device gone")
	}
}
