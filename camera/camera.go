// Package camera drives the viewer: the camera pose, ambient orbit
// controls, and the tracking controller that flies between bodies and the
// overview.
package camera

import (
	"math"

	"github.com/signalsfoundry/orrery/core"
)

// Overview pose.
var (
	OverviewPosition = core.Vec3{X: 0, Y: 10, Z: 40}
	OverviewTarget   = core.Origin
)

// Camera is a look-at pose.
type Camera struct {
	Position core.Vec3
	Target   core.Vec3
	Up       core.Vec3
}

// New returns a camera at the overview pose.
func New() *Camera {
	return &Camera{
		Position: OverviewPosition,
		Target:   OverviewTarget,
		Up:       core.Vec3{Y: 1},
	}
}

// Distance returns the camera-target distance.
func (c *Camera) Distance() float64 {
	return c.Position.DistanceTo(c.Target)
}

// Basis returns the unit forward, right and up vectors of the view.
// A degenerate pose falls back to looking down -Z.
func (c *Camera) Basis() (forward, right, up core.Vec3) {
	forward = c.Target.Sub(c.Position).Normalize()
	if forward == (core.Vec3{}) {
		forward = core.Vec3{Z: -1}
	}
	worldUp := c.Up
	if worldUp == (core.Vec3{}) {
		worldUp = core.Vec3{Y: 1}
	}
	right = forward.Cross(worldUp).Normalize()
	if right == (core.Vec3{}) {
		// Looking straight along Up.
		right = forward.Cross(core.Vec3{Z: 1}).Normalize()
	}
	up = right.Cross(forward)
	return forward, right, up
}

// OrbitControls holds the ambient view behaviour: slow auto-rotation
// about the target and a distance clamp.
type OrbitControls struct {
	AutoRotate      bool
	AutoRotateSpeed float64
	MinDistance     float64
	MaxDistance     float64
}

// NewOrbitControls returns controls with auto-rotation on.
func NewOrbitControls() *OrbitControls {
	return &OrbitControls{
		AutoRotate:      true,
		AutoRotateSpeed: 0.3,
		MinDistance:     5,
		MaxDistance:     90,
	}
}

// Update rotates cam about the target's vertical axis when auto-rotating,
// then clamps the camera-target distance. A speed of 1 is one turn per
// minute.
func (o *OrbitControls) Update(cam *Camera, dt float64) {
	offset := cam.Position.Sub(cam.Target)
	if o.AutoRotate && dt > 0 {
		angle := 2 * math.Pi / 60 * o.AutoRotateSpeed * dt
		offset = core.RotationY(-angle).MulPoint(offset)
	}

	d := offset.Norm()
	switch {
	case d == 0:
	case o.MinDistance > 0 && d < o.MinDistance:
		offset = offset.Scale(o.MinDistance / d)
	case o.MaxDistance > 0 && d > o.MaxDistance:
		offset = offset.Scale(o.MaxDistance / d)
	}
	cam.Position = cam.Target.Add(offset)
}
