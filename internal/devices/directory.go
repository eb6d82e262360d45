// Package devices tracks which grow pods are currently reachable and
// where they answer on the network.
package devices

import (
	"sort"
	"sync"
	"time"
)

// Device is one reachable grow pod controller.
type Device struct {
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Port     int       `json:"port"`
	LastSeen time.Time `json:"last_seen"`
}

// Directory answers where a device currently lives. Lookups never block:
// a device is either present right now or it isn't.
type Directory interface {
	Lookup(name string) (Device, bool)
	List() []Device
}

// Listener is notified when a device joins or leaves the network.
// Callbacks run on the presence goroutine and must not block.
type Listener interface {
	DeviceAdded(name string)
	DeviceRemoved(name string)
}

// Registry is the in-memory Directory fed by the MQTT presence listener.
// Entries hold only runtime state; nothing here is persisted.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]Device
	listeners []Listener
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Subscribe registers a listener for add/remove notifications.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

var _ Directory = (*Registry)(nil)

func (r *Registry) Lookup(name string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	return d, ok
}

// List returns all present devices sorted by name.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MarkPresent records a device announcement, replacing any previous
// address for the same name. Listeners hear about it only when the
// device was not already present; an address change is not an arrival.
func (r *Registry) MarkPresent(d Device) {
	d.LastSeen = time.Now()
	r.mu.Lock()
	_, known := r.devices[d.Name]
	r.devices[d.Name] = d
	listeners := r.listeners
	r.mu.Unlock()

	if !known {
		for _, l := range listeners {
			l.DeviceAdded(d.Name)
		}
	}
}

// MarkAbsent drops a device. Unknown names are a no-op.
func (r *Registry) MarkAbsent(name string) {
	r.mu.Lock()
	_, known := r.devices[name]
	delete(r.devices, name)
	listeners := r.listeners
	r.mu.Unlock()

	if !known {
		return
	}
	for _, l := range listeners {
		l.DeviceRemoved(name)
	}
}
