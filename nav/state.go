// Package nav holds the navigation state: which body the camera tracks,
// any navigation deferred until its body mounts, and whether a return to
// the overview is in progress.
package nav

import (
	"sync"

	"github.com/signalsfoundry/orrery/kb"
)

// FallbackSize replaces absent, zero or negative nominal sizes.
const FallbackSize = 1.5

// Result reports how a NavigateTo request was handled.
type Result int

const (
	// ResultResolved means tracking switched to the requested body.
	ResultResolved Result = iota
	// ResultPending means the body is not registered yet; the request
	// resolves when it registers.
	ResultPending
	// ResultIgnored means the request carried no id.
	ResultIgnored
)

func (r Result) String() string {
	switch r {
	case ResultResolved:
		return "resolved"
	case ResultPending:
		return "pending"
	case ResultIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Resolver looks up registered bodies. *kb.Registry satisfies it.
type Resolver interface {
	Resolve(id string) (kb.Handle, bool)
}

// Subscriber delivers registry events. *kb.Registry satisfies it.
type Subscriber interface {
	Subscribe(fn func(kb.Event)) (unsubscribe func())
}

// Recorder receives one observation per mutating call.
type Recorder interface {
	ObserveNavigation(op, result string)
}

// Option configures a State.
type Option func(*State)

// WithRecorder wires a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *State) { s.rec = r }
}

// Snapshot is a value copy of the navigation state for UI consumers.
type Snapshot struct {
	TrackedID             string
	IsTracking            bool
	TargetSize            float64
	PendingNavigationID   string
	IsReturningToOverview bool
}

// State is the navigation state. The zero value is not usable; call New.
type State struct {
	mu  sync.Mutex
	reg Resolver
	rec Recorder

	tracked    kb.Positionable
	trackedID  string
	isTracking bool
	targetSize float64
	pendingID  string
	returning  bool
}

// New constructs an idle state resolving ids through reg.
func New(reg Resolver, opts ...Option) *State {
	s := &State{reg: reg, targetSize: FallbackSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach subscribes s to registry events: registering the pending id
// resolves it, and unregistering the tracked body stops tracking. It
// returns the unsubscribe function.
func (s *State) Attach(sub Subscriber) (detach func()) {
	return sub.Subscribe(s.onRegistryEvent)
}

func (s *State) onRegistryEvent(ev kb.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case kb.EventBodyRegistered:
		// A nil positionable cannot be tracked; the request stays pending.
		if s.pendingID != "" && ev.Handle.ID == s.pendingID && ev.Handle.Positionable != nil {
			s.track(ev.Handle.Positionable, ev.Handle.Size, ev.Handle.ID)
			s.observe("resolve_pending", ResultResolved.String())
		}
	case kb.EventBodyUnregistered:
		if s.tracked != nil && ev.Handle.ID == s.trackedID && ev.Handle.Positionable == s.tracked {
			s.stop()
			s.observe("unregister_tracked", "stopped")
		}
	}
}

// NavigateTo tracks the body registered under id, or defers the request
// until it registers. Only the latest deferred id is kept.
func (s *State) NavigateTo(id string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.navigateTo(id)
	s.observe("navigate_to", res.String())
	return res
}

func (s *State) navigateTo(id string) Result {
	if id == "" {
		return ResultIgnored
	}
	if s.reg != nil {
		if h, ok := s.reg.Resolve(id); ok {
			s.track(h.Positionable, h.Size, h.ID)
			return ResultResolved
		}
	}
	s.pendingID = id
	return ResultPending
}

// SetTrackedDirectly tracks p without a registry lookup.
func (s *State) SetTrackedDirectly(p kb.Positionable, size float64, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.track(p, size, id)
	s.observe("set_tracked", ResultResolved.String())
}

// Toggle releases p when it is already tracked and tracks it otherwise.
// released reports the former; the caller chains ReturnToOverview.
func (s *State) Toggle(p kb.Positionable, size float64, id string) (released bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracked != nil && s.tracked == p {
		s.stop()
		s.observe("toggle", "released")
		return true
	}
	s.track(p, size, id)
	s.observe("toggle", "tracked")
	return false
}

// StopTracking clears tracking without animating a return.
func (s *State) StopTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()
	s.observe("stop_tracking", "ok")
}

// ReturnToOverview clears tracking and any pending request, and flags the
// camera to fly back to the overview.
func (s *State) ReturnToOverview() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()
	s.pendingID = ""
	s.returning = true
	s.observe("return_to_overview", "ok")
}

// ClearReturningToOverview is called by the camera once the return
// animation completes.
func (s *State) ClearReturningToOverview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returning = false
}

// Tracked returns the tracked positionable and its size, or nil.
func (s *State) Tracked() (kb.Positionable, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracked, s.targetSize
}

// IsReturningToOverview reports whether a return animation is requested.
func (s *State) IsReturningToOverview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.returning
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TrackedID:             s.trackedID,
		IsTracking:            s.isTracking,
		TargetSize:            s.targetSize,
		PendingNavigationID:   s.pendingID,
		IsReturningToOverview: s.returning,
	}
}

// track must be called with s.mu held. A new target cancels any
// in-flight return rather than letting it finish first, so a snapshot never
// reports tracking and returning together.
func (s *State) track(p kb.Positionable, size float64, id string) {
	if p == nil {
		s.stop()
		return
	}
	s.tracked = p
	s.trackedID = id
	s.isTracking = true
	s.targetSize = sizeOrFallback(size)
	s.pendingID = ""
	s.returning = false
}

// stop must be called with s.mu held.
func (s *State) stop() {
	s.tracked = nil
	s.trackedID = ""
	s.isTracking = false
	s.targetSize = FallbackSize
}

func (s *State) observe(op, result string) {
	if s.rec != nil {
		s.rec.ObserveNavigation(op, result)
	}
}

func sizeOrFallback(size float64) float64 {
	if size > 0 {
		return size
	}
	return FallbackSize
}
