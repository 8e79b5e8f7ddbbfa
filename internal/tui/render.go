// Package tui is the terminal viewer: it draws the projected scene with
// tcell, picks bodies under the pointer and drives the menu from the
// keyboard.
package tui

import (
	"fmt"
	"math"
	"sort"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/orrery/camera"
	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/model"
)

// Hit is a body as drawn on screen, in cell coordinates.
type Hit struct {
	ID     string
	X, Y   int
	Radius float64 // rows
	Depth  float64
}

var (
	styleBase     = tcell.StyleDefault
	styleRing     = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	styleSun      = tcell.StyleDefault.Foreground(tcell.ColorGold)
	stylePlanet   = tcell.StyleDefault.Foreground(tcell.ColorDeepSkyBlue)
	styleMoon     = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleSat      = tcell.StyleDefault.Foreground(tcell.ColorMediumPurple)
	styleLabel    = tcell.StyleDefault.Foreground(tcell.ColorLightGray)
	styleTracked  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorAqua)
	styleMenu     = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleMenuOn   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorAqua)
	stylePanel    = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleHeadline = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
)

// Renderer draws frames onto a tcell screen.
type Renderer struct {
	screen    tcell.Screen
	fov       float64
	ringSteps int
}

// NewRenderer draws onto s.
func NewRenderer(s tcell.Screen) *Renderer {
	return &Renderer{screen: s, fov: 45, ringSteps: 96}
}

// projector matches the terminal's shape. Cells are about twice as tall as
// they are wide.
func (r *Renderer) projector(w, h int) camera.Projector {
	p := camera.NewProjector(float64(w) / float64(2*h))
	p.FOV = r.fov
	return p
}

func toCell(x, y float64, w, h int) (int, int) {
	return int(math.Round((x + 1) / 2 * float64(w))), int(math.Round((1 - y) / 2 * float64(h)))
}

// Draw renders f plus orbit rings and returns the drawn bodies, nearest
// last.
func (r *Renderer) Draw(f engine.Frame, orbits []engine.Orbit) []Hit {
	s := r.screen
	s.Clear()
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return nil
	}
	proj := r.projector(w, h)
	cam := f.Camera

	for _, o := range orbits {
		for _, p := range o.Points {
			x, y, _, ok := proj.Project(&cam, p)
			if !ok {
				continue
			}
			cx, cy := toCell(x, y, w, h)
			if inside(cx, cy, w, h) {
				s.SetContent(cx, cy, '·', nil, styleRing)
			}
		}
	}

	type drawn struct {
		hit  Hit
		body engine.BodyState
	}
	var bodies []drawn
	for _, b := range f.Bodies {
		x, y, depth, ok := proj.Project(&cam, b.Position)
		if !ok {
			continue
		}
		cx, cy := toCell(x, y, w, h)
		rad := proj.ScreenRadius(b.Size, depth) * float64(h) / 2
		bodies = append(bodies, drawn{hit: Hit{ID: b.ID, X: cx, Y: cy, Radius: rad, Depth: depth}, body: b})
	}
	sort.Slice(bodies, func(i, j int) bool { return bodies[i].hit.Depth > bodies[j].hit.Depth })

	hits := make([]Hit, 0, len(bodies))
	for _, d := range bodies {
		tracked := f.Nav.IsTracking && d.body.ID == f.Nav.TrackedID
		r.drawBody(d.hit, d.body, tracked, w, h)
		hits = append(hits, d.hit)
	}

	r.drawMenu(f, w)
	r.drawCallout(f, hits, w, h)
	r.drawPanel(f, w, h)
	r.drawStatus(f, w, h)
	return hits
}

func (r *Renderer) drawBody(hit Hit, b engine.BodyState, tracked bool, w, h int) {
	glyph, style := bodyGlyph(b.Kind)
	if hit.Radius >= 1.5 {
		fillDisc(r.screen, hit.X, hit.Y, hit.Radius, style, w, h)
	}
	if tracked {
		style = styleTracked
	}
	if inside(hit.X, hit.Y, w, h) {
		r.screen.SetContent(hit.X, hit.Y, glyph, nil, style)
	}
	if b.Kind == model.BodyKindSun || b.Kind == model.BodyKindPlanet {
		drawText(r.screen, hit.X+int(hit.Radius*2)+2, hit.Y, b.Name, styleLabel, w, h)
	}
}

func (r *Renderer) drawMenu(f engine.Frame, w int) {
	x := 1
	for i, sec := range model.Sections {
		label := fmt.Sprintf(" %d %s ", i+1, sec.Title)
		style := styleMenu
		if sec.ID == f.Menu {
			style = styleMenuOn
		}
		x = drawText(r.screen, x, 0, label, style, w, 1) + 1
	}
}

func (r *Renderer) drawCallout(f engine.Frame, hits []Hit, w, h int) {
	if !f.Nav.IsTracking {
		return
	}
	for _, hit := range hits {
		if hit.ID != f.Nav.TrackedID {
			continue
		}
		label := fmt.Sprintf("▶ %s [%s]", nameOf(f, hit.ID), f.Phase)
		y := hit.Y - int(math.Ceil(hit.Radius)) - 1
		if y < 1 {
			y = hit.Y + int(math.Ceil(hit.Radius)) + 1
		}
		drawText(r.screen, hit.X-len([]rune(label))/2, y, label, styleHeadline, w, h)
		return
	}
}

func (r *Renderer) drawPanel(f engine.Frame, w, h int) {
	if !f.Panel.Visible {
		return
	}
	lines := []string{f.Panel.Title, f.Panel.Subtitle}
	if f.Panel.Detail != "" {
		lines = append(lines, "> "+f.Panel.Detail)
	}
	lines = append(lines, "", "[x] close")

	width := 0
	for _, l := range lines {
		width = max(width, len([]rune(l)))
	}
	width += 4
	x0 := w - width - 1
	y0 := 2
	for y := y0; y < y0+len(lines)+2 && y < h-1; y++ {
		for x := x0; x < x0+width && x < w; x++ {
			ch := ' '
			switch {
			case y == y0 || y == y0+len(lines)+1:
				ch = '─'
			case x == x0 || x == x0+width-1:
				ch = '│'
			}
			if inside(x, y, w, h) {
				r.screen.SetContent(x, y, ch, nil, stylePanel)
			}
		}
	}
	for i, l := range lines {
		style := stylePanel
		if i == 0 {
			style = styleHeadline
		}
		drawText(r.screen, x0+2, y0+1+i, l, style, w, h)
	}
}

func (r *Renderer) drawStatus(f engine.Frame, w, h int) {
	status := fmt.Sprintf(" t=%.1fs  %s  ", f.Time, f.Phase)
	if f.Nav.PendingNavigationID != "" {
		status += "pending:" + f.Nav.PendingNavigationID + "  "
	}
	status += "[1-5] menu  [space] overview  [click] select  [q] quit"
	drawText(r.screen, 0, h-1, status, styleStatus, w, h)
}

func bodyGlyph(k model.BodyKind) (rune, tcell.Style) {
	switch k {
	case model.BodyKindSun:
		return '@', styleSun
	case model.BodyKindPlanet:
		return 'O', stylePlanet
	case model.BodyKindMoon:
		return 'o', styleMoon
	case model.BodyKindSatellite:
		return '+', styleSat
	default:
		return '?', styleBase
	}
}

func nameOf(f engine.Frame, id string) string {
	for _, b := range f.Bodies {
		if b.ID == id {
			if b.Name != "" {
				return b.Name
			}
			break
		}
	}
	return id
}

func fillDisc(s tcell.Screen, cx, cy int, radius float64, style tcell.Style, w, h int) {
	ry := int(math.Ceil(radius))
	for dy := -ry; dy <= ry; dy++ {
		for dx := -2 * ry; dx <= 2*ry; dx++ {
			if cellDistance(dx, dy) > radius {
				continue
			}
			if x, y := cx+dx, cy+dy; inside(x, y, w, h) {
				s.SetContent(x, y, '░', nil, style)
			}
		}
	}
}

// cellDistance measures in rows; a column is half a row wide.
func cellDistance(dx, dy int) float64 {
	return math.Hypot(float64(dx)/2, float64(dy))
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style, w, h int) int {
	for _, ch := range text {
		if inside(x, y, w, h) {
			s.SetContent(x, y, ch, nil, style)
		}
		x++
	}
	return x
}

func inside(x, y, w, h int) bool {
	return x >= 0 && y >= 0 && x < w && y < h
}

// Pick returns the nearest-to-camera body whose drawn disc covers the cell,
// allowing slack rows of tolerance.
func Pick(hits []Hit, x, y int, slack float64) (string, bool) {
	best := -1
	for i, hit := range hits {
		if cellDistance(x-hit.X, y-hit.Y) > math.Max(hit.Radius, 0.5)+slack {
			continue
		}
		if best < 0 || hit.Depth < hits[best].Depth {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return hits[best].ID, true
}
