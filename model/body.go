package model

// BodyKind indicates the level of a body in the orbital hierarchy.
type BodyKind int

const (
	BodyKindUnknown BodyKind = iota
	BodyKindSun
	BodyKindPlanet
	BodyKindMoon
	BodyKindSatellite
)

func (k BodyKind) String() string {
	switch k {
	case BodyKindSun:
		return "SUN"
	case BodyKindPlanet:
		return "PLANET"
	case BodyKindMoon:
		return "MOON"
	case BodyKindSatellite:
		return "SATELLITE"
	default:
		return "UNKNOWN"
	}
}

// Nominal sizes per hierarchy level, in scene units.
const (
	SunSize       = 8.0
	PlanetSize    = 2.0
	MoonSize      = 0.5
	SatelliteSize = 0.5
)

// OrbitPlane is a static orbital plane orientation, in degrees.
type OrbitPlane struct {
	Tilt     float64 `yaml:"tilt"`
	Rotation float64 `yaml:"rotation"`
}

// TLE carries two-line elements for a body whose motion follows a real
// satellite. TimeScale multiplies simulated seconds before propagation.
type TLE struct {
	Line1     string  `yaml:"line1"`
	Line2     string  `yaml:"line2"`
	TimeScale float64 `yaml:"time_scale"`
}

// SunDefinition is the static root of the galaxy.
type SunDefinition struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Position [3]float64 `yaml:"position"`
	Size     float64    `yaml:"size"`
}

// PlanetDefinition orbits the sun.
type PlanetDefinition struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	OrbitRadius float64          `yaml:"orbit_radius"`
	OrbitSpeed  float64          `yaml:"orbit_speed"`
	Plane       OrbitPlane       `yaml:"plane"`
	Size        float64          `yaml:"size"`
	Moons       []MoonDefinition `yaml:"moons"`
}

// MoonDefinition orbits a planet. Its plane and phase are derived from its
// index among its siblings.
type MoonDefinition struct {
	ID          string                `yaml:"id"`
	Name        string                `yaml:"name"`
	OrbitRadius float64               `yaml:"orbit_radius"`
	OrbitSpeed  float64               `yaml:"orbit_speed"`
	Size        float64               `yaml:"size"`
	Icon        string                `yaml:"icon"`
	URL         string                `yaml:"url"`
	Satellites  []SatelliteDefinition `yaml:"satellites"`
}

// SatelliteDefinition orbits a moon. Placement is derived from its index
// unless TLE is set.
type SatelliteDefinition struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
	TLE  *TLE   `yaml:"tle"`
}
