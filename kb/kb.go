// Package kb holds the body registry: the id-keyed index of navigable
// bodies currently mounted in the scene.
package kb

import (
	"sort"
	"sync"

	"github.com/signalsfoundry/orrery/core"
)

// Positionable reports a live world-space position. It returns false once
// the underlying node can no longer be queried (for example after it was
// unmounted).
//
// Implementations must be comparable: navigation compares positionables
// with == to decide whether a click hits the tracked body.
type Positionable interface {
	WorldPosition() (core.Vec3, bool)
}

// Handle is one registered body.
type Handle struct {
	ID           string
	Positionable Positionable
	Size         float64
}

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventBodyRegistered EventType = iota
	EventBodyUnregistered
)

func (t EventType) String() string {
	switch t {
	case EventBodyRegistered:
		return "registered"
	case EventBodyUnregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers on every registry mutation.
type Event struct {
	Type   EventType
	Handle Handle
}

type subscription struct {
	id int
	fn func(Event)
}

// Registry is an in-memory, thread-safe store of body handles.
//
// The registry never owns the scene nodes behind its positionables.
type Registry struct {
	mu sync.RWMutex

	bodies map[string]Handle

	subs   []subscription
	nextID int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bodies: make(map[string]Handle),
	}
}

// Register inserts or overwrites the entry for id and notifies subscribers.
func (r *Registry) Register(id string, p Positionable, size float64) {
	h := Handle{ID: id, Positionable: p, Size: size}

	r.mu.Lock()
	r.bodies[id] = h
	subs := r.snapshotSubs()
	r.mu.Unlock()

	notify(subs, Event{Type: EventBodyRegistered, Handle: h})
}

// Unregister removes the entry for id. It is a no-op if id is absent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	h, ok := r.bodies[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.bodies, id)
	subs := r.snapshotSubs()
	r.mu.Unlock()

	notify(subs, Event{Type: EventBodyUnregistered, Handle: h})
}

// Resolve returns the handle registered under id.
func (r *Registry) Resolve(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.bodies[id]
	return h, ok
}

// List returns a snapshot of all handles sorted by id.
func (r *Registry) List() []Handle {
	r.mu.RLock()
	res := make([]Handle, 0, len(r.bodies))
	for _, h := range r.bodies {
		res = append(res, h)
	}
	r.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Len returns the number of registered bodies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bodies)
}

// Subscribe registers a callback for registry events. Callbacks run
// synchronously on the mutating goroutine, outside the registry lock, in
// subscription order. It returns an idempotent unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs = append(r.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, s := range r.subs {
				if s.id == id {
					r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// snapshotSubs must be called with r.mu held.
func (r *Registry) snapshotSubs() []func(Event) {
	if len(r.subs) == 0 {
		return nil
	}
	out := make([]func(Event), len(r.subs))
	for i, s := range r.subs {
		out[i] = s.fn
	}
	return out
}

// Notify subscribers outside the lock so callbacks may call back into
// the registry.
func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
