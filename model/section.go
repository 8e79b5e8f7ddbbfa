package model

// Section ids double as the ids of the bodies that carry them.
const (
	SectionPresentation = "presentation"
	SectionPortfolio    = "portfolio"
	SectionSkills       = "skills"
	SectionContact      = "contact"
	SectionPlatforms    = "platforms"
)

// Section is a content area reachable from the navigation menu.
type Section struct {
	ID       string
	Title    string
	Subtitle string
}

// Sections lists the menu entries in display order.
var Sections = []Section{
	{ID: SectionPresentation, Title: "PRÉSENTATION", Subtitle: "MISSION OVERVIEW"},
	{ID: SectionPortfolio, Title: "PORTFOLIO", Subtitle: "PROJECTS DB"},
	{ID: SectionSkills, Title: "SKILLS", Subtitle: "CAPABILITIES"},
	{ID: SectionContact, Title: "CONTACT", Subtitle: "OPEN CHANNEL"},
	{ID: SectionPlatforms, Title: "PLATFORMS", Subtitle: "EXTERNAL LINKS"},
}

// IsSection reports whether id names a content section.
func IsSection(id string) bool {
	_, ok := SectionByID(id)
	return ok
}

// SectionByID looks up a section by id.
func SectionByID(id string) (Section, bool) {
	for _, s := range Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
