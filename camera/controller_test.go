package camera

import (
	"math"
	"testing"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/nav"
)

const frame = 1.0 / 60

type point struct {
	pos     core.Vec3
	mounted bool
}

func (p *point) WorldPosition() (core.Vec3, bool) { return p.pos, p.mounted }

func run(c *Controller, controls *OrbitControls, seconds float64) {
	for i := 0; i < int(math.Round(seconds/frame)); i++ {
		c.Update(frame)
		if controls != nil {
			controls.Update(c.Camera(), frame)
		}
	}
}

func newRig(t *testing.T) (*kb.Registry, *nav.State, *Camera, *OrbitControls, *Controller) {
	t.Helper()
	reg := kb.NewRegistry()
	state := nav.New(reg)
	t.Cleanup(state.Attach(reg))
	cam := New()
	controls := NewOrbitControls()
	ctrl := NewController(cam, state, WithControls(controls))
	return reg, state, cam, controls, ctrl
}

func TestApproachSettlesAndLocks(t *testing.T) {
	reg, state, cam, controls, ctrl := newRig(t)
	target := &point{pos: core.Vec3{X: 10}, mounted: true}
	reg.Register("portfolio", target, 2)
	state.NavigateTo("portfolio")

	if got := ctrl.Update(frame); got != PhaseApproaching {
		t.Fatalf("first frame phase = %v, want approaching", got)
	}
	if controls.AutoRotate {
		t.Fatalf("auto-rotate still on during approach")
	}

	run(ctrl, controls, 6)
	if got := ctrl.Phase(); got != PhaseTracking {
		t.Fatalf("phase after 6s = %v, want tracking", got)
	}
	want := core.Vec3{X: 10, Y: 6, Z: 16}
	if d := cam.Position.DistanceTo(want); d >= 1.5 {
		t.Fatalf("camera at %+v, %.3f from %+v; want < 1.5", cam.Position, d, want)
	}
}

func TestApproachUsesFallbackSize(t *testing.T) {
	_, state, cam, controls, ctrl := newRig(t)
	target := &point{pos: core.Vec3{X: 30}, mounted: true}
	state.SetTrackedDirectly(target, 0, "anon")

	run(ctrl, controls, 8)
	want := core.Vec3{X: 30, Y: 4.5, Z: 12}
	if ctrl.Phase() != PhaseTracking {
		t.Fatalf("phase = %v, want tracking", ctrl.Phase())
	}
	if d := cam.Position.DistanceTo(want); d >= 1.5 {
		t.Fatalf("camera %+v is %.3f from %+v", cam.Position, d, want)
	}
}

func TestApproachEscapesOnProgress(t *testing.T) {
	_, state, _, _, _ := newRig(t)
	cfg := DefaultConfig()
	cfg.ApproachLockDistance = 0 // never close enough
	cam := New()
	ctrl := NewController(cam, state, WithConfig(cfg))
	state.SetTrackedDirectly(&point{pos: core.Vec3{X: 10}, mounted: true}, 2, "x")

	// approachProgress > 5 needs just over 50 simulated seconds.
	run(ctrl, nil, 49)
	if ctrl.Phase() != PhaseApproaching {
		t.Fatalf("phase after 49s = %v, want approaching", ctrl.Phase())
	}
	run(ctrl, nil, 2)
	if ctrl.Phase() != PhaseTracking {
		t.Fatalf("phase after 51s = %v, want tracking", ctrl.Phase())
	}
}

func TestTrackingFollowsRigidly(t *testing.T) {
	reg, state, cam, _, ctrl := newRig(t)
	target := &point{pos: core.Vec3{X: 10}, mounted: true}
	reg.Register("skills", target, 2)
	state.NavigateTo("skills")
	run(ctrl, nil, 6)
	if ctrl.Phase() != PhaseTracking {
		t.Fatalf("phase = %v, want tracking", ctrl.Phase())
	}

	before := cam.Position
	move := core.Vec3{X: 3, Y: -1, Z: 2}
	target.pos = target.pos.Add(move)
	ctrl.Update(frame)
	if got, want := cam.Position, before.Add(move); got.DistanceTo(want) > 1e-9 {
		t.Fatalf("camera moved to %+v, want %+v", got, want)
	}

	// The orbit target eases toward the body.
	for range 600 {
		ctrl.Update(frame)
	}
	if d := cam.Target.DistanceTo(target.pos); d > 1e-6 {
		t.Fatalf("camera target %+v not converged on %+v", cam.Target, target.pos)
	}
}

func TestReturnToOverviewCompletes(t *testing.T) {
	reg, state, cam, controls, ctrl := newRig(t)
	target := &point{pos: core.Vec3{X: 10}, mounted: true}
	reg.Register("contact", target, 2)
	state.NavigateTo("contact")
	run(ctrl, nil, 6)

	state.ReturnToOverview()
	var returned bool
	for i := 0; i < int(3/frame)*10; i++ {
		if ctrl.Update(frame) == PhaseIdle {
			returned = true
			break
		}
	}
	if !returned {
		t.Fatalf("return never completed")
	}
	if d := cam.Position.DistanceTo(OverviewPosition); d >= 1 {
		t.Fatalf("camera %+v is %.3f from overview", cam.Position, d)
	}
	if state.IsReturningToOverview() {
		t.Fatalf("returning flag still set after completion")
	}
	if !controls.AutoRotate {
		t.Fatalf("auto-rotate not resumed after return")
	}
}

func TestReturnPreemptsTracking(t *testing.T) {
	reg, state, _, _, ctrl := newRig(t)
	reg.Register("a", &point{pos: core.Vec3{X: 10}, mounted: true}, 2)
	state.NavigateTo("a")
	run(ctrl, nil, 6)

	state.ReturnToOverview()
	if got := ctrl.Update(frame); got != PhaseReturningToOverview {
		t.Fatalf("phase = %v, want returning", got)
	}
}

func TestRetargetRestartsApproach(t *testing.T) {
	reg, state, _, _, ctrl := newRig(t)
	reg.Register("a", &point{pos: core.Vec3{X: 10}, mounted: true}, 2)
	reg.Register("b", &point{pos: core.Vec3{X: -10}, mounted: true}, 2)
	state.NavigateTo("a")
	run(ctrl, nil, 6)

	var transitions []Phase
	ctrl.onPhase = func(_, to Phase) { transitions = append(transitions, to) }
	state.NavigateTo("b")
	ctrl.Update(frame)
	if len(transitions) != 1 || transitions[0] != PhaseApproaching {
		t.Fatalf("transitions = %v, want [approaching]", transitions)
	}
	if ctrl.approachProgress != frame*0.1 {
		t.Fatalf("approachProgress = %v, want one frame's worth", ctrl.approachProgress)
	}
}

func TestUnregisteredTargetIsHarmless(t *testing.T) {
	reg, state, _, _, ctrl := newRig(t)
	target := &point{pos: core.Vec3{X: 10}, mounted: true}
	reg.Register("github", target, 0.5)
	state.NavigateTo("github")
	ctrl.Update(frame)

	reg.Unregister("github")
	target.mounted = false
	if got := ctrl.Update(frame); got != PhaseIdle {
		t.Fatalf("phase after unregister = %v, want idle", got)
	}
}

func TestDanglingPositionableFreezesCamera(t *testing.T) {
	_, state, cam, _, ctrl := newRig(t)
	target := &point{pos: core.Vec3{X: 10}, mounted: true}
	state.SetTrackedDirectly(target, 2, "x")
	ctrl.Update(frame)

	target.mounted = false
	before := *cam
	for range 10 {
		ctrl.Update(frame)
	}
	if *cam != before {
		t.Fatalf("camera moved while its target could not be queried")
	}
}

func TestFrameRateIndependence(t *testing.T) {
	settle := func(dt float64) core.Vec3 {
		reg := kb.NewRegistry()
		state := nav.New(reg)
		cam := New()
		ctrl := NewController(cam, state)
		state.SetTrackedDirectly(&point{pos: core.Vec3{X: 10}, mounted: true}, 2, "x")
		for i := 0; i < int(math.Round(2/dt)); i++ {
			ctrl.Update(dt)
		}
		return cam.Position
	}
	a, b := settle(1.0/60), settle(1.0/120)
	if d := a.DistanceTo(b); d > 0.5 {
		t.Fatalf("positions after 2s differ by %.3f between 60 and 120 fps", d)
	}
}
