package model

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidGalaxy is wrapped by every validation failure.
var ErrInvalidGalaxy = errors.New("invalid galaxy")

// Orbit defaults applied when a definition leaves them at zero.
const (
	DefaultOrbitRadius = 10.0
	DefaultOrbitSpeed  = 0.1
)

// LoadGalaxy reads a YAML galaxy layout from r, fills defaults, and
// validates it.
//
// Unknown keys are rejected so that typos in hand-edited layouts surface
// instead of silently falling back to defaults.
func LoadGalaxy(r io.Reader) (*Galaxy, error) {
	var g Galaxy
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("LoadGalaxy: decode failed: %w", err)
	}
	g.ApplyDefaults()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// LoadGalaxyFile loads the layout at path. An empty path yields
// DefaultGalaxy.
func LoadGalaxyFile(path string) (*Galaxy, error) {
	if path == "" {
		return DefaultGalaxy(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open galaxy %q: %w", path, err)
	}
	defer f.Close()
	return LoadGalaxy(f)
}

// ApplyDefaults fills zero sizes and orbit parameters.
func (g *Galaxy) ApplyDefaults() {
	if g.Sun.Size == 0 {
		g.Sun.Size = SunSize
	}
	for i := range g.Planets {
		p := &g.Planets[i]
		if p.Size == 0 {
			p.Size = PlanetSize
		}
		if p.OrbitRadius == 0 {
			p.OrbitRadius = DefaultOrbitRadius
		}
		if p.OrbitSpeed == 0 {
			p.OrbitSpeed = DefaultOrbitSpeed
		}
		for j := range p.Moons {
			m := &p.Moons[j]
			if m.Size == 0 {
				m.Size = MoonSize
			}
			if m.OrbitRadius == 0 {
				m.OrbitRadius = DefaultOrbitRadius
			}
			if m.OrbitSpeed == 0 {
				m.OrbitSpeed = DefaultOrbitSpeed
			}
		}
	}
}

// Validate checks ids and orbit parameters. Satellites may omit ids.
func (g *Galaxy) Validate() error {
	seen := make(map[string]string)
	claim := func(id, where string) error {
		if id == "" {
			return fmt.Errorf("%w: %s has no id", ErrInvalidGalaxy, where)
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%w: id %q used by %s and %s", ErrInvalidGalaxy, id, prev, where)
		}
		seen[id] = where
		return nil
	}

	if err := claim(g.Sun.ID, "sun"); err != nil {
		return err
	}
	if g.Sun.Size < 0 {
		return fmt.Errorf("%w: sun %q has negative size", ErrInvalidGalaxy, g.Sun.ID)
	}
	for i, p := range g.Planets {
		where := fmt.Sprintf("planet[%d]", i)
		if err := claim(p.ID, where); err != nil {
			return err
		}
		if p.OrbitRadius <= 0 {
			return fmt.Errorf("%w: planet %q orbit radius must be positive", ErrInvalidGalaxy, p.ID)
		}
		if p.Size < 0 {
			return fmt.Errorf("%w: planet %q has negative size", ErrInvalidGalaxy, p.ID)
		}
		for j, m := range p.Moons {
			where := fmt.Sprintf("planet[%d].moon[%d]", i, j)
			if err := claim(m.ID, where); err != nil {
				return err
			}
			if m.OrbitRadius <= 0 {
				return fmt.Errorf("%w: moon %q orbit radius must be positive", ErrInvalidGalaxy, m.ID)
			}
			for k, s := range m.Satellites {
				if s.ID != "" {
					if err := claim(s.ID, fmt.Sprintf("%s.satellite[%d]", where, k)); err != nil {
						return err
					}
				}
				if s.TLE != nil && (s.TLE.Line1 == "" || s.TLE.Line2 == "") {
					return fmt.Errorf("%w: satellite %d of moon %q has an incomplete TLE", ErrInvalidGalaxy, k, m.ID)
				}
			}
		}
	}
	return nil
}
