package scene

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/model"
)

type buildOptions struct {
	epoch time.Time
}

// BuildOption customises Build.
type BuildOption func(*buildOptions)

// WithEpoch sets the instant TLE-driven satellites start propagating from.
func WithEpoch(t time.Time) BuildOption {
	return func(o *buildOptions) { o.epoch = t }
}

// Build validates g and mounts its bodies into a new scene: sun, then
// planets under the sun, moons under their planet and satellites under
// their moon.
func Build(g *model.Galaxy, reg Registrar, opts ...BuildOption) (*Scene, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions{epoch: time.Now().UTC()}
	for _, opt := range opts {
		opt(&o)
	}

	s := New(reg)

	sun := NewNode(g.Sun.ID, g.Sun.Name, model.BodyKindSun, g.Sun.Size, &core.StaticPlacement{
		Position: core.Vec3{X: g.Sun.Position[0], Y: g.Sun.Position[1], Z: g.Sun.Position[2]},
	})
	if err := s.Mount(nil, sun); err != nil {
		return nil, fmt.Errorf("mount sun: %w", err)
	}

	for _, pd := range g.Planets {
		planet := NewNode(pd.ID, pd.Name, model.BodyKindPlanet, pd.Size,
			core.NewCircularOrbit(pd.OrbitRadius, pd.OrbitSpeed,
				core.OrbitPlane{TiltDeg: pd.Plane.Tilt, RotationDeg: pd.Plane.Rotation}, 0))
		if err := s.Mount(sun, planet); err != nil {
			return nil, fmt.Errorf("mount planet %q: %w", pd.ID, err)
		}

		for i, md := range pd.Moons {
			moon := NewNode(md.ID, md.Name, model.BodyKindMoon, md.Size,
				core.NewCircularOrbit(md.OrbitRadius, md.OrbitSpeed, MoonPlane(i), Phase(i, len(pd.Moons))))
			if err := s.Mount(planet, moon); err != nil {
				return nil, fmt.Errorf("mount moon %q: %w", md.ID, err)
			}

			for j, sd := range md.Satellites {
				sat := NewSatelliteNode(sd, moon, j, len(md.Satellites), o.epoch)
				if err := s.Mount(moon, sat); err != nil {
					return nil, fmt.Errorf("mount satellite %q: %w", sat.ID, err)
				}
			}
		}
	}
	return s, nil
}

// MoonPlane is the orbital plane of the i-th moon of a planet.
func MoonPlane(i int) core.OrbitPlane {
	return core.OrbitPlane{TiltDeg: float64(i) * 20, RotationDeg: float64(i) * 45}
}

// SatellitePlane is the orbital plane of the i-th satellite of a moon.
func SatellitePlane(i int) core.OrbitPlane {
	return core.OrbitPlane{TiltDeg: float64((i * 37) % 90), RotationDeg: float64((i * 53) % 360)}
}

// SatelliteOrbit returns radius and angular speed of the i-th satellite
// around a parent of the given size.
func SatelliteOrbit(parentSize float64, i int) (radius, speed float64) {
	return parentSize*2.5 + float64(i%3)*0.4, 0.08 + float64(i%5)*0.02
}

// Phase spreads n siblings evenly around their orbit.
func Phase(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(i) / float64(n) * 2 * math.Pi
}

// NewSatelliteNode builds the i-th of n satellites circling parent. The id
// falls back to "<parentID>/<i>".
func NewSatelliteNode(sd model.SatelliteDefinition, parent *Node, i, n int, epoch time.Time) *Node {
	id := sd.ID
	if id == "" {
		id = fmt.Sprintf("%s/%d", parent.ID, i)
	}
	return NewNode(id, sd.Name, model.BodyKindSatellite, model.SatelliteSize,
		satelliteMotion(sd, parent.Size, i, n, epoch))
}

func satelliteMotion(sd model.SatelliteDefinition, parentSize float64, i, n int, epoch time.Time) core.MotionModel {
	radius, speed := SatelliteOrbit(parentSize, i)
	if sd.TLE != nil {
		return core.NewSGP4Orbit(sd.TLE.Line1, sd.TLE.Line2, epoch, radius, sd.TLE.TimeScale)
	}
	return core.NewCircularOrbit(radius, speed, SatellitePlane(i), Phase(i, n))
}
