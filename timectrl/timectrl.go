// Package timectrl drives the frame clock.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock exposes simulated time to components that only need to read it.
type SimClock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances one Tick per wall-clock Tick.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// Listener is invoked once per tick with the new simulated time and the
// simulated step.
type Listener func(simTime time.Time, dt time.Duration)

// TimeController drives simulation time and notifies registered listeners.
// Listeners run on the controller's goroutine, in registration order.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time

	listeners []Listener
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	if tick <= 0 {
		tick = time.Second / 60
	}
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps simulation time without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances one Tick synchronously and notifies listeners.
func (tc *TimeController) Step() time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	now := tc.currentTime
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now, tc.Tick)
	}
	return now
}

// Start runs the controller from StartTime in a separate goroutine until
// duration of simulated time has elapsed (forever when duration <= 0) or
// ctx is done. It returns a channel that is closed when the controller
// finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.SetTime(tc.StartTime)
		elapsed := time.Duration(0)

		var tick <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}

			tc.Step()
			elapsed += tc.Tick
		}
	}()
	return done
}
