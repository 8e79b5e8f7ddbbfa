package core

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// MotionModel produces a body's transform relative to its parent and
// advances it by simulated time.
type MotionModel interface {
	// Advance moves the model forward by dt simulated seconds.
	Advance(dt float64)
	// Local returns the current transform relative to the parent frame.
	Local() Mat4
}

// Ringed is implemented by motion models with a closed orbital path.
type Ringed interface {
	// Ring samples the orbit path in the parent frame.
	Ring(segments int) []Vec3
}

// OrbitPlane is a static plane orientation in degrees.
type OrbitPlane struct {
	TiltDeg     float64
	RotationDeg float64
}

// Matrix returns the plane rotation (Rx(tilt) * Ry(rotation)).
func (p OrbitPlane) Matrix() Mat4 {
	return EulerXYZ(DegToRad(p.TiltDeg), DegToRad(p.RotationDeg), 0)
}

// StaticPlacement keeps a body at a fixed offset from its parent.
type StaticPlacement struct {
	Position Vec3
}

// Advance for a static placement does nothing.
func (m *StaticPlacement) Advance(float64) {}

// Local returns the fixed translation.
func (m *StaticPlacement) Local() Mat4 { return Translation(m.Position) }

// CircularOrbit rides a circle of Radius in a tilted plane. Angle is
// advanced by Speed radians per simulated second and is never wrapped.
type CircularOrbit struct {
	Radius float64
	Speed  float64
	Plane  OrbitPlane
	Angle  float64

	plane Mat4
	ready bool
}

// NewCircularOrbit constructs an orbit starting at initialAngle radians.
func NewCircularOrbit(radius, speed float64, plane OrbitPlane, initialAngle float64) *CircularOrbit {
	return &CircularOrbit{
		Radius: radius,
		Speed:  speed,
		Plane:  plane,
		Angle:  initialAngle,
		plane:  plane.Matrix(),
		ready:  true,
	}
}

// Advance adds Speed*dt to the orbital angle.
func (m *CircularOrbit) Advance(dt float64) {
	m.Angle += m.Speed * dt
}

// Local composes plane tilt, orbital rotation about the plane normal, and
// the fixed radius offset along the in-plane reference axis.
func (m *CircularOrbit) Local() Mat4 {
	rot := m.planeMatrix().Mul(RotationY(m.Angle))
	return rot.Mul(Translation(Vec3{X: m.Radius}))
}

// Ring samples the full orbit circle in the parent frame.
func (m *CircularOrbit) Ring(segments int) []Vec3 {
	if segments < 3 {
		segments = 3
	}
	plane := m.planeMatrix()
	pts := make([]Vec3, 0, segments)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		pts = append(pts, plane.Mul(RotationY(theta)).MulPoint(Vec3{X: m.Radius}))
	}
	return pts
}

func (m *CircularOrbit) planeMatrix() Mat4 {
	if !m.ready {
		m.plane = m.Plane.Matrix()
		m.ready = true
	}
	return m.plane
}

// SGP4Orbit places a body along the direction of a real satellite, as
// propagated by SGP4 from a TLE, scaled to a scene orbit radius. Simulated
// seconds are multiplied by TimeScale before propagation.
type SGP4Orbit struct {
	Radius    float64
	TimeScale float64

	sat     satellite.Satellite
	epoch   time.Time
	elapsed float64
	dir     Vec3
}

// NewSGP4Orbit constructs an orbital model from TLE lines, starting at epoch.
func NewSGP4Orbit(line1, line2 string, epoch time.Time, radius, timeScale float64) *SGP4Orbit {
	if timeScale <= 0 {
		timeScale = 1
	}
	m := &SGP4Orbit{
		Radius:    radius,
		TimeScale: timeScale,
		sat:       satellite.TLEToSat(line1, line2, satellite.GravityWGS72),
		epoch:     epoch.UTC(),
		dir:       Vec3{X: 1},
	}
	m.propagate()
	return m
}

// Advance moves simulated time forward and re-propagates.
func (m *SGP4Orbit) Advance(dt float64) {
	m.elapsed += dt * m.TimeScale
	m.propagate()
}

// Local returns the scaled translation along the propagated direction.
func (m *SGP4Orbit) Local() Mat4 {
	return Translation(m.dir.Scale(m.Radius))
}

// SimTime returns the instant the satellite was last propagated to.
func (m *SGP4Orbit) SimTime() time.Time {
	return m.epoch.Add(time.Duration(m.elapsed * float64(time.Second)))
}

func (m *SGP4Orbit) propagate() {
	t := m.SimTime()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	// ECI is Z-up; the scene is Y-up.
	dir := Vec3{X: posECI.X, Y: posECI.Z, Z: -posECI.Y}
	if n := dir.Norm(); n > 0 && !math.IsNaN(n) && !math.IsInf(n, 0) {
		m.dir = dir.Scale(1 / n)
	}
}
