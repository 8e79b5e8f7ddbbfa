package camera

import (
	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/kb"
)

// Phase is the controller's current behaviour.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseApproaching
	PhaseTracking
	PhaseReturningToOverview
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseApproaching:
		return "approaching"
	case PhaseTracking:
		return "tracking"
	case PhaseReturningToOverview:
		return "returning"
	default:
		return "unknown"
	}
}

// Config holds the controller constants. Lerp factors are per frame at
// ReferenceRate frames per second.
type Config struct {
	OverviewPosition core.Vec3
	OverviewTarget   core.Vec3

	ReturnRate           float64
	ReturnBaseFactor     float64
	ReturnEaseFactor     float64
	ReturnArriveDistance float64
	ReturnMaxProgress    float64

	ApproachRate         float64
	ApproachDuration     float64
	ApproachBaseFactor   float64
	ApproachEaseFactor   float64
	ApproachTargetGain   float64
	ApproachLockDistance float64
	ApproachMaxProgress  float64

	// Standoff offset above and behind the target, in multiples of size.
	OffsetHeight float64
	OffsetBack   float64

	TrackTargetFactor float64

	ReferenceRate float64
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		OverviewPosition: OverviewPosition,
		OverviewTarget:   OverviewTarget,

		ReturnRate:           0.15,
		ReturnBaseFactor:     0.02,
		ReturnEaseFactor:     0.03,
		ReturnArriveDistance: 1,
		ReturnMaxProgress:    3,

		ApproachRate:         0.1,
		ApproachDuration:     4,
		ApproachBaseFactor:   0.01,
		ApproachEaseFactor:   0.04,
		ApproachTargetGain:   1.2,
		ApproachLockDistance: 1.5,
		ApproachMaxProgress:  5,

		OffsetHeight: 3,
		OffsetBack:   8,

		TrackTargetFactor: 0.15,

		ReferenceRate: 60,
	}
}

// Navigation is the slice of navigation state the controller reads and
// the one flag it clears. *nav.State satisfies it.
type Navigation interface {
	Tracked() (kb.Positionable, float64)
	IsReturningToOverview() bool
	ClearReturningToOverview()
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig replaces the default tuning.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithControls lets the controller toggle ambient auto-rotation.
func WithControls(o *OrbitControls) Option {
	return func(c *Controller) { c.controls = o }
}

// WithPhaseObserver is called on every phase change.
func WithPhaseObserver(fn func(from, to Phase)) Option {
	return func(c *Controller) { c.onPhase = fn }
}

// Controller moves the camera each frame according to the navigation
// state. It is not safe for concurrent use.
type Controller struct {
	cfg      Config
	cam      *Camera
	nav      Navigation
	controls *OrbitControls
	onPhase  func(from, to Phase)

	phase            Phase
	returnProgress   float64
	approachProgress float64
	lastTracked      kb.Positionable
	lastPos          core.Vec3
}

// NewController binds cam to nav.
func NewController(cam *Camera, nav Navigation, opts ...Option) *Controller {
	c := &Controller{cfg: DefaultConfig(), cam: cam, nav: nav}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the phase set by the latest Update.
func (c *Controller) Phase() Phase { return c.phase }

// Camera returns the driven camera.
func (c *Controller) Camera() *Camera { return c.cam }

// Update runs one frame of dt seconds and returns the resulting phase.
func (c *Controller) Update(dt float64) Phase {
	if dt < 0 {
		dt = 0
	}

	if c.nav.IsReturningToOverview() {
		c.lastTracked = nil
		c.setPhase(PhaseReturningToOverview)
		c.updateReturn(dt)
		return c.phase
	}

	p, size := c.nav.Tracked()
	if p == nil {
		c.lastTracked = nil
		c.setPhase(PhaseIdle)
		return c.phase
	}
	if p != c.lastTracked {
		c.lastTracked = p
		c.approachProgress = 0
		c.returnProgress = 0
		if c.controls != nil {
			c.controls.AutoRotate = false
		}
		c.setPhase(PhaseApproaching)
	}

	world, ok := p.WorldPosition()
	if !ok {
		// Unmounted body: leave the camera where it is.
		return c.phase
	}

	switch c.phase {
	case PhaseApproaching:
		c.updateApproach(dt, world, size)
	case PhaseTracking:
		c.updateTracking(dt, world)
	}
	return c.phase
}

func (c *Controller) updateReturn(dt float64) {
	cfg := c.cfg
	c.returnProgress += dt * cfg.ReturnRate
	ease := core.EaseOutCubic(min(c.returnProgress, 1))
	alpha := c.alpha(cfg.ReturnBaseFactor+ease*cfg.ReturnEaseFactor, dt)

	c.cam.Position = c.cam.Position.Lerp(cfg.OverviewPosition, alpha)
	c.cam.Target = c.cam.Target.Lerp(cfg.OverviewTarget, alpha)

	if c.cam.Position.DistanceTo(cfg.OverviewPosition) < cfg.ReturnArriveDistance ||
		c.returnProgress > cfg.ReturnMaxProgress {
		c.nav.ClearReturningToOverview()
		c.returnProgress = 0
		if c.controls != nil {
			c.controls.AutoRotate = true
		}
		c.setPhase(PhaseIdle)
	}
}

func (c *Controller) updateApproach(dt float64, world core.Vec3, size float64) {
	cfg := c.cfg
	if size <= 0 {
		size = 1.5
	}
	desired := world.Add(core.Vec3{Y: size * cfg.OffsetHeight, Z: size * cfg.OffsetBack})

	c.approachProgress += dt * cfg.ApproachRate
	t := 1.0
	if cfg.ApproachDuration > 0 {
		t = min(c.approachProgress/cfg.ApproachDuration, 1)
	}
	factor := cfg.ApproachBaseFactor + core.EaseInOutCubic(t)*cfg.ApproachEaseFactor

	c.cam.Position = c.cam.Position.Lerp(desired, c.alpha(factor, dt))
	c.cam.Target = c.cam.Target.Lerp(world, c.alpha(factor*cfg.ApproachTargetGain, dt))

	if c.cam.Position.DistanceTo(desired) < cfg.ApproachLockDistance ||
		c.approachProgress > cfg.ApproachMaxProgress {
		c.lastPos = world
		c.setPhase(PhaseTracking)
	}
}

func (c *Controller) updateTracking(dt float64, world core.Vec3) {
	c.cam.Position = c.cam.Position.Add(world.Sub(c.lastPos))
	c.cam.Target = c.cam.Target.Lerp(world, c.alpha(c.cfg.TrackTargetFactor, dt))
	c.lastPos = world
}

func (c *Controller) alpha(factor, dt float64) float64 {
	return core.FrameAlpha(factor, dt, c.cfg.ReferenceRate)
}

func (c *Controller) setPhase(p Phase) {
	if p == c.phase {
		return
	}
	from := c.phase
	c.phase = p
	if c.onPhase != nil {
		c.onPhase(from, p)
	}
}
