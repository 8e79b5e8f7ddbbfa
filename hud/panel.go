// Package hud holds read-only consumers of the navigation state: the
// content panel director and the navigation menu.
package hud

import (
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/nav"
)

// Panel timings, in seconds.
const (
	DefaultOpenDelay  = 1.0
	DefaultClearDelay = 0.3
)

// Panel describes what the content window shows.
type Panel struct {
	ID       string
	Title    string
	Subtitle string
	Visible  bool
	// Detail is the selected portfolio entry, if any.
	Detail string
}

type timerKind int

const (
	timerNone timerKind = iota
	timerOpen
	timerClear
)

// PanelDirector decides which section panel is shown. Panels open once the
// camera has had time to travel and close as soon as tracking stops.
type PanelDirector struct {
	OpenDelay  float64
	ClearDelay float64

	onClose func()

	visible  bool
	activeID string
	detail   string

	timer     timerKind
	elapsed   float64
	pendingID string

	seen    bool
	lastKey panelKey
}

type panelKey struct {
	tracking  bool
	trackedID string
	activeID  string
}

// NewPanelDirector returns a director that calls onClose (typically
// ReturnToOverview) when the user closes the panel.
func NewPanelDirector(onClose func()) *PanelDirector {
	return &PanelDirector{
		OpenDelay:  DefaultOpenDelay,
		ClearDelay: DefaultClearDelay,
		onClose:    onClose,
	}
}

// Update reacts to the navigation snapshot and advances panel timers by dt
// seconds.
func (d *PanelDirector) Update(dt float64, snap nav.Snapshot) {
	key := panelKey{tracking: snap.IsTracking, trackedID: snap.TrackedID, activeID: d.activeID}
	if !d.seen || key != d.lastKey {
		d.seen = true
		d.react(snap)
		d.lastKey = panelKey{tracking: snap.IsTracking, trackedID: snap.TrackedID, activeID: d.activeID}
	}
	d.advance(dt)
}

func (d *PanelDirector) react(snap nav.Snapshot) {
	// A state change cancels whatever was scheduled.
	d.timer = timerNone
	d.elapsed = 0

	switch {
	case snap.IsTracking && model.IsSection(snap.TrackedID):
		if d.activeID != snap.TrackedID {
			d.visible = false
			d.detail = ""
		}
		d.timer = timerOpen
		d.pendingID = snap.TrackedID
	case !snap.IsTracking:
		d.visible = false
		d.timer = timerClear
	}
}

func (d *PanelDirector) advance(dt float64) {
	if d.timer == timerNone || dt <= 0 {
		return
	}
	d.elapsed += dt
	switch d.timer {
	case timerOpen:
		if d.elapsed >= d.OpenDelay {
			d.timer = timerNone
			d.activeID = d.pendingID
			d.visible = true
		}
	case timerClear:
		if d.elapsed >= d.ClearDelay {
			d.timer = timerNone
			d.activeID = ""
			d.detail = ""
		}
	}
}

// Panel returns the current panel. Visible is false while no section is
// active.
func (d *PanelDirector) Panel() Panel {
	p := Panel{ID: d.activeID, Visible: d.visible && d.activeID != "", Detail: d.detail}
	if s, ok := model.SectionByID(d.activeID); ok {
		p.Title = s.Title
		p.Subtitle = s.Subtitle
	}
	return p
}

// SelectDetail opens the detail window for a portfolio entry.
func (d *PanelDirector) SelectDetail(id string) {
	if d.activeID != model.SectionPortfolio {
		return
	}
	d.detail = id
}

// CloseDetail closes the detail window.
func (d *PanelDirector) CloseDetail() {
	d.detail = ""
}

// Close hides the panel and hands control back to the overview.
func (d *PanelDirector) Close() {
	d.visible = false
	d.activeID = ""
	d.detail = ""
	d.timer = timerNone
	if d.onClose != nil {
		d.onClose()
	}
}
