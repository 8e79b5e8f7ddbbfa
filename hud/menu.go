package hud

import (
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/nav"
)

// Navigator is the subset of navigation the menu drives.
type Navigator interface {
	NavigateTo(id string) nav.Result
	ReturnToOverview()
}

// Menu is the section navigation menu.
type Menu struct {
	nav   Navigator
	items []model.Section
}

// NewMenu builds a menu over the stock sections.
func NewMenu(n Navigator) *Menu {
	return &Menu{nav: n, items: model.Sections}
}

// Items returns the entries in display order.
func (m *Menu) Items() []model.Section {
	return append([]model.Section(nil), m.items...)
}

// Select runs the menu action for id. The presentation entry flies back
// to the overview; any other entry navigates to its body.
func (m *Menu) Select(id string) nav.Result {
	if id == model.SectionPresentation {
		m.nav.ReturnToOverview()
		return nav.ResultResolved
	}
	return m.nav.NavigateTo(id)
}

// SelectIndex selects the i-th entry (0-based). It reports false when i is
// out of range.
func (m *Menu) SelectIndex(i int) (nav.Result, bool) {
	if i < 0 || i >= len(m.items) {
		return nav.ResultIgnored, false
	}
	return m.Select(m.items[i].ID), true
}

// Active returns the highlighted entry id or "".
func (m *Menu) Active(snap nav.Snapshot) string {
	for _, it := range m.items {
		if it.ID == snap.TrackedID {
			return it.ID
		}
	}
	return ""
}
