package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/orrery/camera"
	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/internal/logging"
)

const (
	// pickSlack is the pointer tolerance in rows around a drawn body.
	pickSlack = 1.0
	// maxFrameDT caps the step after a stall.
	maxFrameDT = 0.1
)

// Option customises an App.
type Option func(*App)

// WithChime plays c whenever the camera locks on.
func WithChime(c Chime) Option {
	return func(a *App) {
		if c != nil {
			a.chime = c
		}
	}
}

// WithLogger attaches a logger. Logs must not go to the terminal the app
// draws on.
func WithLogger(l logging.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithFrameInterval sets the wall-clock frame period.
func WithFrameInterval(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.interval = d
		}
	}
}

// App owns the engine loop: it steps the engine, draws and handles input
// on a single goroutine.
type App struct {
	eng      *engine.Engine
	screen   tcell.Screen
	renderer *Renderer
	chime    Chime
	log      logging.Logger
	interval time.Duration

	hits      []Hit
	lastPhase camera.Phase
	buttons   tcell.ButtonMask
}

// New binds an initialised screen to eng.
func New(eng *engine.Engine, screen tcell.Screen, opts ...Option) *App {
	a := &App{
		eng:      eng,
		screen:   screen,
		renderer: NewRenderer(screen),
		chime:    silentChime{},
		log:      logging.Noop(),
		interval: time.Second / 60,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run drives frames and input until ctx is done or the user quits. The
// caller owns screen setup and teardown.
func (a *App) Run(ctx context.Context) error {
	a.screen.EnableMouse()
	a.screen.HideCursor()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !a.HandleEvent(ev) {
				a.log.Info(ctx, "viewer quit")
				return nil
			}
		case now := <-ticker.C:
			a.Tick(min(now.Sub(last).Seconds(), maxFrameDT))
			last = now
		}
	}
}

// Tick steps the engine by dt seconds and redraws.
func (a *App) Tick(dt float64) engine.Frame {
	f := a.eng.Step(dt)
	if f.Phase == camera.PhaseTracking && a.lastPhase != camera.PhaseTracking {
		a.chime.Play()
	}
	a.lastPhase = f.Phase

	a.hits = a.renderer.Draw(f, a.eng.Orbits(a.renderer.ringSteps))
	a.screen.Show()
	return f
}

// HandleEvent applies one input event. It returns false when the user
// asked to quit.
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(ev)
	case *tcell.EventMouse:
		a.handleMouse(ev)
	case *tcell.EventResize:
		a.screen.Sync()
	}
	return true
}

func (a *App) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
	default:
		return true
	}

	switch r := ev.Rune(); {
	case r == 'q':
		return false
	case r >= '1' && r <= '9':
		if res, ok := a.eng.Menu().SelectIndex(int(r - '1')); ok {
			a.log.Debug(context.Background(), "menu select",
				logging.Int("index", int(r-'1')),
				logging.String("result", res.String()),
			)
		}
	case r == ' ':
		a.eng.ReturnToOverview()
	case r == 's':
		a.eng.StopTracking()
	case r == 'x':
		a.eng.Panel().Close()
	}
	return true
}

func (a *App) handleMouse(ev *tcell.EventMouse) {
	buttons := ev.Buttons()
	pressed := buttons&tcell.Button1 != 0 && a.buttons&tcell.Button1 == 0
	a.buttons = buttons
	if !pressed {
		return
	}

	x, y := ev.Position()
	id, ok := Pick(a.hits, x, y, pickSlack)
	if !ok {
		return
	}
	if _, err := a.eng.Click(id); err != nil {
		a.log.Warn(context.Background(), "click failed", logging.String("body_id", id), logging.Err(err))
	}
}
