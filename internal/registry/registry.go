// Package registry mirrors per-device session state for display.
//
// The registry is pure data: the session manager writes to it, everyone else
// reads copies. Writes to one device id are serialized; reads may be stale.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/srg/sensorlink/internal/device"
	"github.com/srg/sensorlink/internal/telemetry"
)

// Phase is the session lifecycle state of one device.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseNegotiating   Phase = "negotiating"
	PhaseBound         Phase = "bound"
	PhaseStreaming     Phase = "streaming"
	PhaseDisconnecting Phase = "disconnecting"
	PhaseFailed        Phase = "failed"
)

// SessionState is a snapshot of one device. LastReadings holds the most recent
// reading of each kind and survives disconnects.
type SessionState struct {
	Descriptor         device.Descriptor
	Phase              Phase
	LastNotificationAt time.Time
	LastReadings       map[telemetry.Kind]telemetry.Reading
	LastError          string
}

// Reading returns the last reading of kind k, if any.
func (s SessionState) Reading(k telemetry.Kind) (telemetry.Reading, bool) {
	r, ok := s.LastReadings[k]
	return r, ok
}

type entry struct {
	mu      sync.Mutex
	state   SessionState
	removed bool
}

func (e *entry) snapshot() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	s.LastReadings = make(map[telemetry.Kind]telemetry.Reading, len(e.state.LastReadings))
	for k, r := range e.state.LastReadings {
		s.LastReadings[k] = r
	}
	return s
}

// Registry holds one SessionState per device id.
type Registry struct {
	entries *hashmap.Map[string, *entry]
}

func New() *Registry {
	return &Registry{entries: hashmap.New[string, *entry]()}
}

// Upsert inserts the descriptor or replaces the descriptor of an existing entry.
// Phase and readings of an existing entry are kept.
func (r *Registry) Upsert(desc device.Descriptor) {
	e, _ := r.entries.GetOrInsert(desc.ID, newEntry())
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		e = newEntry()
		r.entries.Set(desc.ID, e)
		e.mu.Lock()
	}
	e.state.Descriptor = desc
	e.mu.Unlock()
}

func newEntry() *entry {
	return &entry{state: SessionState{
		Phase:        PhaseIdle,
		LastReadings: make(map[telemetry.Kind]telemetry.Reading),
	}}
}

// live returns the entry stored under id, skipping removed ones.
func (r *Registry) live(id string) (*entry, bool) {
	e, ok := r.entries.Get(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e, !e.removed
}

// each calls fn for every live entry. The underlying map may still hand out
// deleted elements while ranging, so each key is checked against a fresh lookup.
func (r *Registry) each(fn func(*entry)) {
	r.entries.Range(func(id string, e *entry) bool {
		if cur, ok := r.live(id); ok && cur == e {
			fn(e)
		}
		return true
	})
}

// Get returns a copy of the state for id.
func (r *Registry) Get(id string) (SessionState, bool) {
	e, ok := r.live(id)
	if !ok {
		return SessionState{}, false
	}
	return e.snapshot(), true
}

// SetPhase updates the phase and returns the previous one. Unknown ids are ignored.
func (r *Registry) SetPhase(id string, phase Phase) (Phase, bool) {
	var prev Phase
	ok := r.update(id, func(s *SessionState) {
		prev = s.Phase
		s.Phase = phase
		if phase != PhaseFailed {
			s.LastError = ""
		}
	})
	return prev, ok
}

// SetError records err and moves the entry to PhaseFailed.
func (r *Registry) SetError(id string, err error) bool {
	return r.update(id, func(s *SessionState) {
		s.Phase = PhaseFailed
		if err != nil {
			s.LastError = err.Error()
		}
	})
}

// RecordReading stores reading as the latest of its kind.
func (r *Registry) RecordReading(id string, reading telemetry.Reading) bool {
	return r.update(id, func(s *SessionState) {
		s.LastReadings[reading.Kind()] = reading
	})
}

// Touch records the arrival time of a notification.
func (r *Registry) Touch(id string, at time.Time) bool {
	return r.update(id, func(s *SessionState) {
		s.LastNotificationAt = at
	})
}

// Remove deletes the entry for id.
func (r *Registry) Remove(id string) bool {
	e, ok := r.live(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	r.entries.Del(id)
	return true
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	n := 0
	r.each(func(*entry) { n++ })
	return n
}

// Snapshot returns copies of every state, sorted by device id.
func (r *Registry) Snapshot() []SessionState {
	out := make([]SessionState, 0)
	r.each(func(e *entry) {
		out = append(out, e.snapshot())
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor.ID < out[j].Descriptor.ID
	})
	return out
}

func (r *Registry) update(id string, fn func(*SessionState)) bool {
	e, ok := r.entries.Get(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return false
	}
	fn(&e.state)
	return true
}
