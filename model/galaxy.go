package model

// Galaxy is the full orbital layout: one sun and its planets.
type Galaxy struct {
	Sun     SunDefinition      `yaml:"sun"`
	Planets []PlanetDefinition `yaml:"planets"`
}

// DefaultGalaxy returns the stock presentation layout with defaults applied.
func DefaultGalaxy() *Galaxy {
	sat := func(icon, name string) SatelliteDefinition {
		return SatelliteDefinition{Icon: icon, Name: name}
	}

	g := &Galaxy{
		Sun: SunDefinition{
			ID:   SectionPresentation,
			Name: "PRÉSENTATION",
			Size: SunSize,
		},
		Planets: []PlanetDefinition{
			{
				ID:          SectionPortfolio,
				Name:        "PORTFOLIO",
				OrbitRadius: 20,
				OrbitSpeed:  0.08,
				Plane:       OrbitPlane{Tilt: 15, Rotation: 0},
				Size:        PlanetSize,
				Moons: []MoonDefinition{
					{ID: "projet1", Name: "Projet 1", OrbitRadius: 4, OrbitSpeed: 0.3},
					{ID: "projet2", Name: "Projet 2", OrbitRadius: 5.5, OrbitSpeed: 0.25},
					{ID: "projet3", Name: "Projet 3", OrbitRadius: 7, OrbitSpeed: 0.2},
				},
			},
			{
				ID:          SectionSkills,
				Name:        "SKILLS",
				OrbitRadius: 35,
				OrbitSpeed:  0.05,
				Plane:       OrbitPlane{Tilt: 45, Rotation: 90},
				Size:        PlanetSize,
				Moons: []MoonDefinition{
					{
						ID:          "hardskills",
						Name:        "Hardskills",
						OrbitRadius: 6,
						OrbitSpeed:  0.01,
						Satellites: []SatelliteDefinition{
							sat("react", "React"),
							sat("node-js", "Node.js"),
							sat("js", "JavaScript"),
							sat("html5", "HTML5"),
							sat("css3-alt", "CSS3"),
							sat("docker", "Docker"),
							sat("github", "GitHub"),
							sat("robot", "IA"),
							sat("code", "TypeScript"),
							sat("server", "Express"),
						},
					},
					{
						ID:          "softskills",
						Name:        "Softskills",
						OrbitRadius: 14,
						OrbitSpeed:  0.001,
						Satellites: []SatelliteDefinition{
							sat("users", "Leadership"),
							sat("comments", "Communication"),
							sat("lightbulb", "Créativité"),
							sat("handshake", "Collaboration"),
							sat("brain", "Problem Solving"),
							sat("clock", "Gestion du temps"),
							sat("chart-line", "Analytique"),
							sat("heart", "Empathie"),
						},
					},
				},
			},
			{
				ID:          SectionContact,
				Name:        "CONTACT",
				OrbitRadius: 50,
				OrbitSpeed:  0.03,
				Plane:       OrbitPlane{Tilt: 30, Rotation: 180},
				Size:        PlanetSize,
			},
			{
				ID:          SectionPlatforms,
				Name:        "MY PLATFORMS",
				OrbitRadius: 65,
				OrbitSpeed:  0.02,
				Plane:       OrbitPlane{Tilt: 60, Rotation: 270},
				Size:        PlanetSize,
				Moons: []MoonDefinition{
					{ID: "github", Name: "GitHub", Icon: "github", URL: "https://github.com"},
					{ID: "linkedin", Name: "LinkedIn", Icon: "linkedin", URL: "https://linkedin.com"},
					{ID: "twitter", Name: "Twitter", Icon: "twitter", URL: "https://twitter.com"},
				},
			},
		},
	}
	g.ApplyDefaults()
	return g
}
