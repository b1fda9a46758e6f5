// Package kb is the object-profile registry: the table of drag and wind
// coefficients keyed by object type that drift predictions are computed from.
package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/drift-predictor/model"
)

// ErrProfileNotFound is returned by Lookup for an unknown object type.
var ErrProfileNotFound = errors.New("object profile not found")

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventProfileAdded EventType = iota
	EventProfileUpdated
	EventProfileRemoved
)

func (e EventType) String() string {
	switch e {
	case EventProfileAdded:
		return "added"
	case EventProfileUpdated:
		return "updated"
	case EventProfileRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when a profile changes.
type Event struct {
	Type    EventType
	Profile model.ObjectProfile
}

// Registry is an in-memory, thread-safe store of object profiles.
type Registry struct {
	mu sync.RWMutex

	// base profiles survive every Replace unless overridden by id.
	base     []model.ObjectProfile
	profiles map[string]model.ObjectProfile

	subs   map[int]func(Event)
	nextID int
}

// NewRegistry constructs a registry seeded with base. Invalid or duplicate
// base profiles are rejected.
func NewRegistry(base ...model.ObjectProfile) (*Registry, error) {
	r := &Registry{
		profiles: make(map[string]model.ObjectProfile, len(base)),
		subs:     make(map[int]func(Event)),
	}
	for _, p := range base {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.profiles[p.ID]; dup {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		r.profiles[p.ID] = p
	}
	r.base = append([]model.ObjectProfile(nil), base...)
	return r, nil
}

// NewBuiltinRegistry returns a registry holding the built-in profile table.
func NewBuiltinRegistry() *Registry {
	r, err := NewRegistry(model.BuiltinProfiles()...)
	if err != nil {
		panic(fmt.Sprintf("kb: built-in profiles: %v", err))
	}
	return r
}

// Lookup returns the profile for an object type id.
func (r *Registry) Lookup(id string) (model.ObjectProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return model.ObjectProfile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, id)
	}
	return p, nil
}

// List returns a snapshot of all profiles sorted by id.
func (r *Registry) List() []model.ObjectProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.ObjectProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Len returns the number of profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Put adds or replaces a single profile and notifies subscribers.
func (r *Registry) Put(p model.ObjectProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	ev := Event{Type: EventProfileAdded, Profile: p}
	if old, exists := r.profiles[p.ID]; exists {
		if old == p {
			r.mu.Unlock()
			return nil
		}
		ev.Type = EventProfileUpdated
	}
	r.profiles[p.ID] = p
	subs := r.subscribers()
	r.mu.Unlock()

	notify(subs, ev)
	return nil
}

// Replace swaps the registry contents for the base profiles overlaid with
// profiles. The whole set is validated first; on error nothing changes.
// Subscribers receive one event per added, updated or removed profile.
func (r *Registry) Replace(profiles []model.ObjectProfile) error {
	next := make(map[string]model.ObjectProfile, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := next[p.ID]; dup {
			return fmt.Errorf("duplicate profile id %q", p.ID)
		}
		next[p.ID] = p
	}

	r.mu.Lock()
	for _, p := range r.base {
		if _, overridden := next[p.ID]; !overridden {
			next[p.ID] = p
		}
	}
	var events []Event
	for id, p := range next {
		old, exists := r.profiles[id]
		switch {
		case !exists:
			events = append(events, Event{Type: EventProfileAdded, Profile: p})
		case old != p:
			events = append(events, Event{Type: EventProfileUpdated, Profile: p})
		}
	}
	for id, old := range r.profiles {
		if _, kept := next[id]; !kept {
			events = append(events, Event{Type: EventProfileRemoved, Profile: old})
		}
	}
	r.profiles = next
	subs := r.subscribers()
	r.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Profile.ID < events[j].Profile.ID })
	for _, ev := range events {
		notify(subs, ev)
	}
	return nil
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function that is safe to call more than once.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// subscribers snapshots callbacks in registration order. Callers hold r.mu.
func (r *Registry) subscribers() []func(Event) {
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, r.subs[id])
	}
	return out
}

// Subscribers are called outside the lock so they may query the registry.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
