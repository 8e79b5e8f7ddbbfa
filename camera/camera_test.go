package camera

import (
	"math"
	"testing"

	"github.com/signalsfoundry/orrery/core"
)

func TestNewCameraAtOverview(t *testing.T) {
	cam := New()
	if cam.Position != (core.Vec3{Y: 10, Z: 40}) || cam.Target != core.Origin {
		t.Fatalf("New() = %+v, want overview pose", cam)
	}
}

func TestBasisOrthonormal(t *testing.T) {
	cam := &Camera{Position: core.Vec3{X: 3, Y: 7, Z: -2}, Target: core.Vec3{X: -1, Y: 0, Z: 5}, Up: core.Vec3{Y: 1}}
	f, r, u := cam.Basis()
	for name, v := range map[string]core.Vec3{"forward": f, "right": r, "up": u} {
		if math.Abs(v.Norm()-1) > 1e-9 {
			t.Fatalf("%s not unit: %+v", name, v)
		}
	}
	if math.Abs(f.Dot(r)) > 1e-9 || math.Abs(f.Dot(u)) > 1e-9 || math.Abs(r.Dot(u)) > 1e-9 {
		t.Fatalf("basis not orthogonal: f=%+v r=%+v u=%+v", f, r, u)
	}
}

func TestBasisLookingDown(t *testing.T) {
	cam := &Camera{Position: core.Vec3{Y: 10}, Target: core.Origin, Up: core.Vec3{Y: 1}}
	_, r, _ := cam.Basis()
	if r == (core.Vec3{}) {
		t.Fatalf("degenerate right vector looking along up")
	}
}

func TestOrbitControlsAutoRotateKeepsDistance(t *testing.T) {
	cam := New()
	o := NewOrbitControls()
	before := cam.Distance()

	// Speed 0.3 turns 2π/60*0.3 rad per second; 200s is exactly one turn.
	for range 200 * 60 {
		o.Update(cam, 1.0/60)
	}
	if math.Abs(cam.Distance()-before) > 1e-6 {
		t.Fatalf("distance drifted from %v to %v", before, cam.Distance())
	}
	if d := cam.Position.DistanceTo(OverviewPosition); d > 1e-6 {
		t.Fatalf("after a full turn camera at %+v, want back at overview", cam.Position)
	}

	o.AutoRotate = true
	o.Update(cam, 10)
	if cam.Position.Y != 10 {
		t.Fatalf("auto-rotate changed height: %+v", cam.Position)
	}
}

func TestOrbitControlsClampsDistance(t *testing.T) {
	o := NewOrbitControls()
	o.AutoRotate = false

	near := &Camera{Position: core.Vec3{Z: 1}, Target: core.Origin}
	o.Update(near, 1.0/60)
	if math.Abs(near.Distance()-5) > 1e-9 {
		t.Fatalf("near distance = %v, want 5", near.Distance())
	}

	far := &Camera{Position: core.Vec3{X: 200}, Target: core.Origin}
	o.Update(far, 1.0/60)
	if math.Abs(far.Distance()-90) > 1e-9 {
		t.Fatalf("far distance = %v, want 90", far.Distance())
	}
}

func TestProjectorCenterAndBehind(t *testing.T) {
	cam := New()
	p := NewProjector(16.0 / 9)

	x, y, depth, ok := p.Project(cam, cam.Target)
	if !ok || math.Abs(x) > 1e-9 || math.Abs(y) > 1e-9 {
		t.Fatalf("target projects to (%v,%v) ok=%v, want screen center", x, y, ok)
	}
	if math.Abs(depth-cam.Distance()) > 1e-9 {
		t.Fatalf("depth = %v, want %v", depth, cam.Distance())
	}

	if _, _, _, ok := p.Project(cam, core.Vec3{Y: 10, Z: 80}); ok {
		t.Fatalf("point behind the camera reported visible")
	}
}

func TestProjectorEdgeOfFrustum(t *testing.T) {
	cam := &Camera{Position: core.Origin, Target: core.Vec3{Z: -1}, Up: core.Vec3{Y: 1}}
	p := NewProjector(1)

	// A point at the top of a 45 degree vertical field maps to y = 1.
	half := core.DegToRad(22.5)
	_, y, _, ok := p.Project(cam, core.Vec3{Y: math.Tan(half) * 10, Z: -10})
	if !ok || math.Abs(y-1) > 1e-9 {
		t.Fatalf("top edge y = %v ok=%v, want 1", y, ok)
	}
	x, _, _, _ := p.Project(cam, core.Vec3{X: 1, Z: -10})
	if x <= 0 {
		t.Fatalf("point to the right projected to x = %v", x)
	}
}
