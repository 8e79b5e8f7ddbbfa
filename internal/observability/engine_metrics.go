package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineCollector exposes frame loop and navigation metrics.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	Frames             prometheus.Counter
	FrameDuration      prometheus.Histogram
	CameraPhase        prometheus.Gauge
	PhaseTransitions   *prometheus.CounterVec
	NavigationRequests *prometheus.CounterVec
	RegisteredBodies   prometheus.Gauge
}

// NewEngineCollector registers engine metrics against reg, defaulting to
// the global registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	reg, gatherer := resolveRegistry(reg)

	frames, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_frames_total",
		Help: "Frames stepped by the simulation loop.",
	}), "orrery_frames_total")
	if err != nil {
		return nil, err
	}

	frameDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_frame_duration_seconds",
		Help:    "Wall-clock time spent computing one frame.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	}), "orrery_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	phase, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_camera_phase",
		Help: "Current camera phase: 0 idle, 1 approaching, 2 tracking, 3 returning.",
	}), "orrery_camera_phase")
	if err != nil {
		return nil, err
	}

	transitions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_camera_phase_transitions_total",
		Help: "Camera phase changes, labeled by source and destination phase.",
	}, []string{"from", "to"}), "orrery_camera_phase_transitions_total")
	if err != nil {
		return nil, err
	}

	navRequests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_navigation_requests_total",
		Help: "Navigation state mutations, labeled by operation and result.",
	}, []string{"op", "result"}), "orrery_navigation_requests_total")
	if err != nil {
		return nil, err
	}

	bodies, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_registered_bodies",
		Help: "Bodies currently present in the registry.",
	}), "orrery_registered_bodies")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:           gatherer,
		Frames:             frames,
		FrameDuration:      frameDuration,
		CameraPhase:        phase,
		PhaseTransitions:   transitions,
		NavigationRequests: navRequests,
		RegisteredBodies:   bodies,
	}, nil
}

// ObserveFrame records one stepped frame.
func (c *EngineCollector) ObserveFrame(d time.Duration) {
	if c == nil {
		return
	}
	c.Frames.Inc()
	c.FrameDuration.Observe(d.Seconds())
}

// ObservePhaseChange records a camera phase transition and the new phase value.
func (c *EngineCollector) ObservePhaseChange(from, to string, value int) {
	if c == nil {
		return
	}
	c.PhaseTransitions.WithLabelValues(from, to).Inc()
	c.CameraPhase.Set(float64(value))
}

// ObserveNavigation satisfies nav.Recorder.
func (c *EngineCollector) ObserveNavigation(op, result string) {
	if c == nil {
		return
	}
	c.NavigationRequests.WithLabelValues(op, result).Inc()
}

// SetRegisteredBodies updates the registry size gauge.
func (c *EngineCollector) SetRegisteredBodies(n int) {
	if c == nil {
		return
	}
	c.RegisteredBodies.Set(float64(n))
}
