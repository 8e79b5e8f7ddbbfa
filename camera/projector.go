package camera

import (
	"math"

	"github.com/signalsfoundry/orrery/core"
)

// Projector maps world points to normalized device coordinates.
type Projector struct {
	FOV    float64 // vertical, degrees
	Aspect float64 // width / height
	Near   float64
}

// NewProjector returns a 45 degree perspective projector.
func NewProjector(aspect float64) Projector {
	return Projector{FOV: 45, Aspect: aspect, Near: 0.1}
}

// Project returns x and y in [-1, 1] for visible points (y up) and the
// view depth. ok is false for points behind the near plane.
func (p Projector) Project(cam *Camera, point core.Vec3) (x, y, depth float64, ok bool) {
	forward, right, up := cam.Basis()
	rel := point.Sub(cam.Position)
	depth = rel.Dot(forward)
	near := p.Near
	if near <= 0 {
		near = 0.1
	}
	if depth < near {
		return 0, 0, depth, false
	}

	aspect := p.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	f := 1 / math.Tan(core.DegToRad(p.FOV)/2)
	x = rel.Dot(right) / depth * f / aspect
	y = rel.Dot(up) / depth * f
	return x, y, depth, true
}

// ScreenRadius returns the projected radius, in NDC height units, of a
// sphere of the given size at depth.
func (p Projector) ScreenRadius(size, depth float64) float64 {
	if depth <= 0 {
		return 0
	}
	f := 1 / math.Tan(core.DegToRad(p.FOV)/2)
	return size / depth * f
}
