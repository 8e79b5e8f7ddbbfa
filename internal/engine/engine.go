// Package engine runs the frame loop: it owns the registry, scene,
// navigation state, camera and HUD consumers, and steps them in order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/orrery/camera"
	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/hud"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/nav"
	"github.com/signalsfoundry/orrery/scene"
	"github.com/signalsfoundry/orrery/timectrl"
)

var (
	// ErrStopped is returned once the engine has been closed.
	ErrStopped = errors.New("engine stopped")
	// ErrUnknownBody indicates no registered or mounted body has the id.
	ErrUnknownBody = errors.New("unknown body")
)

// BodyState is the per-frame view of one mounted body.
type BodyState struct {
	ID       string
	Name     string
	Kind     model.BodyKind
	Size     float64
	ParentID string
	Position core.Vec3
}

// Frame is a value snapshot taken at the end of a Step.
type Frame struct {
	Index  uint64
	Time   float64
	Phase  camera.Phase
	Camera camera.Camera
	Nav    nav.Snapshot
	Panel  hud.Panel
	Menu   string
	Bodies []BodyState
}

// Orbit is the world-space path of one body's orbit.
type Orbit struct {
	ID     string
	Points []core.Vec3
}

// FrameListener receives every frame on the loop goroutine. It must not
// block.
type FrameListener func(Frame)

type command struct {
	fn   func(*Engine)
	done chan struct{}
}

type listener struct {
	id int
	fn FrameListener
}

// Option customises New.
type Option func(*options)

type options struct {
	log     logging.Logger
	metrics *observability.EngineCollector
	galaxy  *model.Galaxy
	epoch   time.Time
	camera  *camera.Config
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics attaches the Prometheus engine collector.
func WithMetrics(m *observability.EngineCollector) Option {
	return func(o *options) { o.metrics = m }
}

// WithGalaxy replaces the default galaxy.
func WithGalaxy(g *model.Galaxy) Option {
	return func(o *options) { o.galaxy = g }
}

// WithEpoch sets the start instant for TLE-driven satellites.
func WithEpoch(t time.Time) Option {
	return func(o *options) { o.epoch = t }
}

// WithCameraConfig replaces the default controller tuning.
func WithCameraConfig(cfg camera.Config) Option {
	return func(o *options) { o.camera = &cfg }
}

// Engine ties the navigation core together. Step and the direct methods
// must be called from one goroutine (the loop); other goroutines use Do,
// Latest and AddFrameListener.
type Engine struct {
	log     logging.Logger
	metrics *observability.EngineCollector
	epoch   time.Time

	reg      *kb.Registry
	nav      *nav.State
	scene    *scene.Scene
	cam      *camera.Camera
	controls *camera.OrbitControls
	ctrl     *camera.Controller
	panel    *hud.PanelDirector
	menu     *hud.Menu

	index   uint64
	elapsed float64
	detach  []func()

	qmu     sync.Mutex
	queue   []command
	closed  bool
	stopped chan struct{}

	lmu       sync.RWMutex
	listeners []listener
	nextLID   int
	latest    Frame
}

// New builds the scene for the configured galaxy and returns an engine
// with the camera at the overview pose.
func New(opts ...Option) (*Engine, error) {
	o := options{log: logging.Noop(), epoch: time.Now().UTC()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Noop()
	}
	if o.galaxy == nil {
		o.galaxy = model.DefaultGalaxy()
	}

	e := &Engine{
		log:      o.log,
		metrics:  o.metrics,
		epoch:    o.epoch,
		reg:      kb.NewRegistry(),
		cam:      camera.New(),
		controls: camera.NewOrbitControls(),
		stopped:  make(chan struct{}),
	}
	e.nav = nav.New(e.reg, nav.WithRecorder(o.metrics))
	e.detach = append(e.detach,
		e.nav.Attach(e.reg),
		e.reg.Subscribe(e.onRegistryEvent),
	)

	copts := []camera.Option{
		camera.WithControls(e.controls),
		camera.WithPhaseObserver(e.onPhaseChange),
	}
	if o.camera != nil {
		copts = append(copts, camera.WithConfig(*o.camera))
	}
	e.ctrl = camera.NewController(e.cam, e.nav, copts...)
	e.panel = hud.NewPanelDirector(e.nav.ReturnToOverview)
	e.menu = hud.NewMenu(e.nav)

	sc, err := scene.Build(o.galaxy, e.reg, scene.WithEpoch(o.epoch))
	if err != nil {
		e.unsubscribe()
		return nil, fmt.Errorf("build scene: %w", err)
	}
	e.scene = sc
	e.latest = e.capture()

	e.log.Info(context.Background(), "engine ready",
		logging.Int("bodies", e.reg.Len()),
	)
	return e, nil
}

func (e *Engine) onRegistryEvent(kb.Event) {
	e.metrics.SetRegisteredBodies(e.reg.Len())
}

func (e *Engine) onPhaseChange(from, to camera.Phase) {
	fields := []logging.Field{
		logging.String("from", from.String()),
		logging.String("to", to.String()),
	}
	if id := e.nav.Snapshot().TrackedID; id != "" {
		fields = append(fields, logging.String("body_id", id))
	}
	e.log.Debug(context.Background(), "camera phase changed", fields...)
	e.metrics.ObservePhaseChange(from.String(), to.String(), int(to))
}

// Step runs one frame of dt seconds: queued commands, scene motion, the
// camera controller, ambient controls, then the HUD consumers.
func (e *Engine) Step(dt float64) Frame {
	if e.isClosed() {
		return e.Latest()
	}
	start := time.Now()
	if dt < 0 {
		dt = 0
	}

	e.drain()
	e.scene.Advance(dt)
	e.ctrl.Update(dt)
	e.controls.Update(e.cam, dt)
	e.panel.Update(dt, e.nav.Snapshot())

	e.index++
	e.elapsed += dt
	frame := e.capture()
	e.metrics.ObserveFrame(time.Since(start))

	e.lmu.Lock()
	e.latest = frame
	ls := append([]listener(nil), e.listeners...)
	e.lmu.Unlock()

	for _, l := range ls {
		l.fn(frame)
	}
	return frame
}

func (e *Engine) capture() Frame {
	snap := e.nav.Snapshot()
	nodes := e.scene.Nodes()
	bodies := make([]BodyState, 0, len(nodes))
	for _, n := range nodes {
		bs := BodyState{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     n.Kind,
			Size:     n.Size,
			Position: n.WorldPosition(),
		}
		if p := n.Parent(); p != nil {
			bs.ParentID = p.ID
		}
		bodies = append(bodies, bs)
	}
	return Frame{
		Index:  e.index,
		Time:   e.elapsed,
		Phase:  e.ctrl.Phase(),
		Camera: *e.cam,
		Nav:    snap,
		Panel:  e.panel.Panel(),
		Menu:   e.menu.Active(snap),
		Bodies: bodies,
	}
}

func (e *Engine) drain() {
	e.qmu.Lock()
	cmds := e.queue
	e.queue = nil
	e.qmu.Unlock()

	for _, c := range cmds {
		c.fn(e)
		close(c.done)
	}
}

// Do queues fn to run on the loop goroutine at the next frame boundary and
// waits for it. A command whose wait is abandoned by ctx still runs.
func (e *Engine) Do(ctx context.Context, fn func(*Engine)) error {
	c := command{fn: fn, done: make(chan struct{})}

	e.qmu.Lock()
	if e.closed {
		e.qmu.Unlock()
		return ErrStopped
	}
	e.queue = append(e.queue, c)
	e.qmu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
}

// Run steps the engine on every tick of tc until ctx is done, then closes
// the engine.
func (e *Engine) Run(ctx context.Context, tc *timectrl.TimeController) {
	tc.AddListener(func(_ time.Time, dt time.Duration) {
		e.Step(dt.Seconds())
	})
	e.log.Info(ctx, "frame loop started",
		logging.String("mode", tc.Mode.String()),
		logging.Duration("tick", tc.Tick),
	)
	<-tc.Start(ctx, 0)
	e.Close()
	e.log.Info(context.Background(), "frame loop stopped", logging.Uint64("frames", e.index))
}

// Close stops accepting commands and releases registry subscriptions.
// Pending Do callers return ErrStopped.
func (e *Engine) Close() {
	e.qmu.Lock()
	if e.closed {
		e.qmu.Unlock()
		return
	}
	e.closed = true
	e.queue = nil
	close(e.stopped)
	e.qmu.Unlock()

	e.unsubscribe()
}

func (e *Engine) isClosed() bool {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	return e.closed
}

func (e *Engine) unsubscribe() {
	for _, fn := range e.detach {
		fn()
	}
	e.detach = nil
}

// Done is closed by Close.
func (e *Engine) Done() <-chan struct{} { return e.stopped }

// Latest returns the most recent frame. Safe from any goroutine.
func (e *Engine) Latest() Frame {
	e.lmu.RLock()
	defer e.lmu.RUnlock()
	return e.latest
}

// AddFrameListener registers fn for every subsequent frame and returns a
// function that removes it.
func (e *Engine) AddFrameListener(fn FrameListener) (remove func()) {
	e.lmu.Lock()
	e.nextLID++
	id := e.nextLID
	e.listeners = append(e.listeners, listener{id: id, fn: fn})
	e.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.lmu.Lock()
			defer e.lmu.Unlock()
			for i, l := range e.listeners {
				if l.id == id {
					e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// NavigateTo tracks id or defers the request until it mounts.
func (e *Engine) NavigateTo(id string) nav.Result {
	res := e.nav.NavigateTo(id)
	e.log.Debug(context.Background(), "navigate",
		logging.String("body_id", id),
		logging.String("result", res.String()),
	)
	return res
}

// Click runs the toggle protocol for a picked body: a body already tracked
// is released and the camera flies back to the overview.
func (e *Engine) Click(id string) (released bool, err error) {
	h, ok := e.reg.Resolve(id)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownBody, id)
	}
	released = e.nav.Toggle(h.Positionable, h.Size, h.ID)
	if released {
		e.nav.ReturnToOverview()
	}
	e.log.Debug(context.Background(), "click",
		logging.String("body_id", id),
		logging.Bool("released", released),
	)
	return released, nil
}

// StopTracking releases the camera where it is.
func (e *Engine) StopTracking() { e.nav.StopTracking() }

// ReturnToOverview flies the camera back to the overview pose.
func (e *Engine) ReturnToOverview() { e.nav.ReturnToOverview() }

// Snapshot returns the navigation state.
func (e *Engine) Snapshot() nav.Snapshot { return e.nav.Snapshot() }

// Phase returns the camera phase set by the latest Step.
func (e *Engine) Phase() camera.Phase { return e.ctrl.Phase() }

// Camera returns a copy of the camera pose.
func (e *Engine) Camera() camera.Camera { return *e.cam }

// Menu returns the section menu.
func (e *Engine) Menu() *hud.Menu { return e.menu }

// Panel returns the panel director.
func (e *Engine) Panel() *hud.PanelDirector { return e.panel }

// Registry returns the body registry.
func (e *Engine) Registry() *kb.Registry { return e.reg }

// Orbits samples every ring-shaped orbit in world space.
func (e *Engine) Orbits(segments int) []Orbit {
	var out []Orbit
	for _, n := range e.scene.Nodes() {
		if pts := e.scene.OrbitPath(n, segments); pts != nil {
			out = append(out, Orbit{ID: n.ID, Points: pts})
		}
	}
	return out
}

// MountSatellite adds a satellite under the body parentID and returns its
// id. A navigation pending on that id resolves immediately.
func (e *Engine) MountSatellite(parentID string, sd model.SatelliteDefinition) (string, error) {
	parent := e.scene.Find(parentID)
	if parent == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownBody, parentID)
	}
	i := 0
	for _, c := range parent.Children() {
		if c.Kind == model.BodyKindSatellite {
			i++
		}
	}
	sat := scene.NewSatelliteNode(sd, parent, i, i+1, e.epoch)
	if err := e.scene.Mount(parent, sat); err != nil {
		return "", err
	}
	e.log.Info(context.Background(), "body mounted",
		logging.String("body_id", sat.ID),
		logging.String("parent_id", parentID),
	)
	return sat.ID, nil
}

// Unmount removes the body id and its subtree from the scene.
func (e *Engine) Unmount(id string) error {
	n := e.scene.Find(id)
	if n == nil {
		return fmt.Errorf("%w: %q", ErrUnknownBody, id)
	}
	e.scene.Unmount(n)
	e.log.Info(context.Background(), "body unmounted", logging.String("body_id", id))
	return nil
}
