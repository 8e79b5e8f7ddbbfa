package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/orrery/camera"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/nav"
	"github.com/signalsfoundry/orrery/timectrl"
)

const frameDT = 1.0 / 60

var testEpoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(append([]Option{WithEpoch(testEpoch)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

// stepUntil steps at 60 fps until cond holds or maxSeconds elapse.
func stepUntil(e *Engine, maxSeconds float64, cond func(Frame) bool) (Frame, bool) {
	var f Frame
	for i := 0; i < int(maxSeconds*60); i++ {
		f = e.Step(frameDT)
		if cond(f) {
			return f, true
		}
	}
	return f, false
}

func TestNewMountsDefaultGalaxy(t *testing.T) {
	e := newTestEngine(t)

	if got := e.Registry().Len(); got != 31 {
		t.Fatalf("registered bodies = %d, want 31", got)
	}
	f := e.Latest()
	if len(f.Bodies) != 31 || f.Index != 0 || f.Phase != camera.PhaseIdle {
		t.Fatalf("initial frame = %d bodies, index %d, phase %v", len(f.Bodies), f.Index, f.Phase)
	}
	if f.Camera.Position != camera.OverviewPosition {
		t.Fatalf("initial camera = %v, want overview", f.Camera.Position)
	}
	if f.Bodies[0].ID != model.SectionPresentation || f.Bodies[1].ParentID != model.SectionPresentation {
		t.Fatalf("unexpected body order: %+v", f.Bodies[:2])
	}
}

func TestNewRejectsInvalidGalaxy(t *testing.T) {
	g := model.DefaultGalaxy()
	g.Planets[0].ID = ""
	if _, err := New(WithGalaxy(g)); !errors.Is(err, model.ErrInvalidGalaxy) {
		t.Fatalf("New error = %v, want ErrInvalidGalaxy", err)
	}
}

func TestNavigateToLocksOnAndOpensPanel(t *testing.T) {
	e := newTestEngine(t)

	if res := e.NavigateTo(model.SectionPortfolio); res != nav.ResultResolved {
		t.Fatalf("NavigateTo = %v, want resolved", res)
	}
	f := e.Step(frameDT)
	if f.Phase != camera.PhaseApproaching || f.Menu != model.SectionPortfolio {
		t.Fatalf("after first frame phase=%v menu=%q", f.Phase, f.Menu)
	}

	f, ok := stepUntil(e, 2, func(f Frame) bool { return f.Panel.Visible })
	if !ok {
		t.Fatalf("panel never opened")
	}
	if f.Panel.ID != model.SectionPortfolio || f.Time < 1 {
		t.Fatalf("panel %+v opened at t=%v", f.Panel, f.Time)
	}

	if _, ok := stepUntil(e, 60, func(f Frame) bool { return f.Phase == camera.PhaseTracking }); !ok {
		t.Fatalf("camera never locked on")
	}
}

func TestClickTogglesAndReturns(t *testing.T) {
	e := newTestEngine(t)

	released, err := e.Click(model.SectionSkills)
	if err != nil || released {
		t.Fatalf("first Click = %v, %v; want tracked", released, err)
	}
	stepUntil(e, 1, func(Frame) bool { return false })

	released, err = e.Click(model.SectionSkills)
	if err != nil || !released {
		t.Fatalf("second Click = %v, %v; want released", released, err)
	}
	snap := e.Snapshot()
	if snap.IsTracking || !snap.IsReturningToOverview {
		t.Fatalf("after release snapshot = %+v", snap)
	}

	f := e.Step(frameDT)
	if f.Phase != camera.PhaseReturningToOverview {
		t.Fatalf("phase = %v, want returning", f.Phase)
	}
	f, ok := stepUntil(e, 30, func(f Frame) bool { return !f.Nav.IsReturningToOverview })
	if !ok || f.Phase != camera.PhaseIdle {
		t.Fatalf("return did not complete: phase %v", f.Phase)
	}
	if f.Panel.Visible {
		t.Fatalf("panel still visible after return")
	}
}

func TestClickUnknownBody(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Click("nope"); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("Click error = %v, want ErrUnknownBody", err)
	}
}

func TestPendingNavigationResolvesOnMount(t *testing.T) {
	e := newTestEngine(t)

	if res := e.NavigateTo("probe"); res != nav.ResultPending {
		t.Fatalf("NavigateTo = %v, want pending", res)
	}
	id, err := e.MountSatellite("projet1", model.SatelliteDefinition{ID: "probe", Name: "Probe"})
	if err != nil || id != "probe" {
		t.Fatalf("MountSatellite = %q, %v", id, err)
	}
	snap := e.Snapshot()
	if snap.TrackedID != "probe" || snap.PendingNavigationID != "" || snap.TargetSize != model.SatelliteSize {
		t.Fatalf("snapshot = %+v", snap)
	}

	anon, err := e.MountSatellite("projet1", model.SatelliteDefinition{Name: "Relay"})
	if err != nil || anon != "projet1/1" {
		t.Fatalf("anonymous MountSatellite = %q, %v", anon, err)
	}
	if _, err := e.MountSatellite("nope", model.SatelliteDefinition{}); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("MountSatellite on unknown parent = %v", err)
	}
}

func TestUnmountTrackedBodyStopsTracking(t *testing.T) {
	e := newTestEngine(t)

	e.NavigateTo(model.SectionPlatforms)
	e.Step(frameDT)
	if err := e.Unmount(model.SectionPlatforms); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if _, ok := e.Registry().Resolve("linkedin"); ok {
		t.Fatalf("moon of unmounted planet still registered")
	}
	if e.Snapshot().IsTracking {
		t.Fatalf("still tracking an unmounted body")
	}
	if f := e.Step(frameDT); f.Phase != camera.PhaseIdle || len(f.Bodies) != 27 {
		t.Fatalf("frame after unmount: phase %v, %d bodies", f.Phase, len(f.Bodies))
	}
	if err := e.Unmount(model.SectionPlatforms); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("second Unmount = %v", err)
	}
}

func TestDoRunsOnLoop(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- e.Do(ctx, func(e *Engine) { e.NavigateTo(model.SectionContact) })
	}()

	for {
		f := e.Step(frameDT)
		select {
		case err := <-errc:
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if e.Snapshot().TrackedID != model.SectionContact {
				t.Fatalf("command not applied")
			}
			return
		case <-ctx.Done():
			t.Fatalf("Do never completed (frame %d)", f.Index)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestCloseStopsEngine(t *testing.T) {
	e := newTestEngine(t)
	e.Step(frameDT)
	e.Close()
	e.Close()

	if err := e.Do(context.Background(), func(*Engine) {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Do after Close = %v, want ErrStopped", err)
	}
	if f := e.Step(frameDT); f.Index != 1 {
		t.Fatalf("Step after Close advanced to frame %d", f.Index)
	}
	select {
	case <-e.Done():
	default:
		t.Fatalf("Done not closed")
	}
}

func TestFrameListeners(t *testing.T) {
	e := newTestEngine(t)

	var seen []uint64
	remove := e.AddFrameListener(func(f Frame) { seen = append(seen, f.Index) })
	e.Step(frameDT)
	e.Step(frameDT)
	remove()
	remove()
	e.Step(frameDT)

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("listener saw %v, want [1 2]", seen)
	}
}

func TestMetricsWiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	e := newTestEngine(t, WithMetrics(m))

	if got := testutil.ToFloat64(m.RegisteredBodies); got != 31 {
		t.Fatalf("orrery_registered_bodies = %v, want 31", got)
	}
	e.NavigateTo(model.SectionPortfolio)
	for i := 0; i < 3; i++ {
		e.Step(frameDT)
	}

	if got := testutil.ToFloat64(m.Frames); got != 3 {
		t.Fatalf("orrery_frames_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.NavigationRequests.WithLabelValues("navigate_to", "resolved")); got != 1 {
		t.Fatalf("navigate_to/resolved = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PhaseTransitions.WithLabelValues("idle", "approaching")); got != 1 {
		t.Fatalf("idle->approaching = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CameraPhase); got != float64(camera.PhaseApproaching) {
		t.Fatalf("orrery_camera_phase = %v, want %d", got, camera.PhaseApproaching)
	}
}

func TestOrbits(t *testing.T) {
	e := newTestEngine(t)
	orbits := e.Orbits(16)
	// Every body except the sun rides a circular orbit.
	if len(orbits) != 30 {
		t.Fatalf("orbits = %d, want 30", len(orbits))
	}
	for _, o := range orbits {
		if len(o.Points) != 16 {
			t.Fatalf("orbit %q has %d points", o.ID, len(o.Points))
		}
	}
}

func TestRunStepsUntilCancelled(t *testing.T) {
	e := newTestEngine(t)
	tc := timectrl.NewTimeController(testEpoch, time.Millisecond, timectrl.RealTime)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	e.Run(ctx, tc)

	if e.Latest().Index == 0 {
		t.Fatalf("Run stepped no frames")
	}
	if err := e.Do(context.Background(), func(*Engine) {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Do after Run = %v, want ErrStopped", err)
	}
}
