// Command orrery runs the navigation engine headless on a scripted tour and
// prints camera and navigation state as it goes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

// Config drives one headless run.
type Config struct {
	Duration    time.Duration
	Tick        time.Duration
	Accelerated bool
	GalaxyPath  string
	// Tour lists body ids visited in order, each for Dwell of simulated
	// time. The camera returns to the overview after the last stop.
	Tour        []string
	Dwell       time.Duration
	ReportEvery time.Duration
}

func main() {
	var cfg Config
	var tour string
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "total simulated duration")
	flag.DurationVar(&cfg.Tick, "tick", time.Second/60, "frame interval")
	flag.BoolVar(&cfg.Accelerated, "accelerated", true, "run as fast as possible instead of in real time")
	flag.StringVar(&cfg.GalaxyPath, "galaxy", "", "YAML galaxy layout; empty uses the built-in layout")
	flag.StringVar(&tour, "tour", strings.Join([]string{model.SectionPortfolio, model.SectionSkills}, ","), "comma-separated body ids to visit")
	flag.DurationVar(&cfg.Dwell, "dwell", 15*time.Second, "simulated time spent at each tour stop")
	flag.DurationVar(&cfg.ReportEvery, "report", 5*time.Second, "simulated interval between status lines")
	flag.Parse()
	cfg.Tour = splitTour(tour)

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdout); err != nil {
		log.Error(ctx, "run failed", logging.Err(err))
		os.Exit(1)
	}
}

func splitTour(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func run(ctx context.Context, cfg Config, log logging.Logger, out io.Writer) error {
	galaxy, err := model.LoadGalaxyFile(cfg.GalaxyPath)
	if err != nil {
		return err
	}
	start := time.Now().UTC()
	eng, err := engine.New(engine.WithLogger(log), engine.WithGalaxy(galaxy), engine.WithEpoch(start))
	if err != nil {
		return err
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(start, cfg.Tick, mode)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := &tourist{eng: eng, cfg: cfg, out: out, cancel: cancel}
	t.next(0)
	remove := eng.AddFrameListener(t.onFrame)
	defer remove()

	fmt.Fprintf(out, "Starting tour: stops=%v duration=%s tick=%s mode=%v\n", cfg.Tour, cfg.Duration, cfg.Tick, mode)
	eng.Run(runCtx, tc)
	fmt.Fprintln(out, "Tour complete.")
	return nil
}

// tourist advances the tour from frame listeners, which run on the loop
// goroutine.
type tourist struct {
	eng    *engine.Engine
	cfg    Config
	out    io.Writer
	cancel context.CancelFunc

	index     int
	arrivedAt float64
	lastPhase string
	lastPrint float64
}

func (t *tourist) next(now float64) {
	t.arrivedAt = now
	if t.index >= len(t.cfg.Tour) {
		t.eng.ReturnToOverview()
		fmt.Fprintf(t.out, "[t=%6.2fs] -> overview\n", now)
		return
	}
	id := t.cfg.Tour[t.index]
	res := t.eng.NavigateTo(id)
	fmt.Fprintf(t.out, "[t=%6.2fs] -> %s (%s)\n", now, id, res)
}

func (t *tourist) onFrame(f engine.Frame) {
	if t.cfg.Duration > 0 && f.Time >= t.cfg.Duration.Seconds() {
		t.cancel()
		return
	}
	if t.index < len(t.cfg.Tour) && f.Time-t.arrivedAt >= t.cfg.Dwell.Seconds() {
		t.index++
		t.next(f.Time)
	}

	phase := f.Phase.String()
	due := t.cfg.ReportEvery > 0 && f.Time-t.lastPrint >= t.cfg.ReportEvery.Seconds()
	if phase == t.lastPhase && !due {
		return
	}
	t.lastPhase = phase
	t.lastPrint = f.Time
	p := f.Camera.Position
	fmt.Fprintf(t.out, "[t=%6.2fs] phase=%-11s tracked=%-12s camera=(%.1f, %.1f, %.1f)",
		f.Time, phase, f.Nav.TrackedID, p.X, p.Y, p.Z)
	if f.Panel.Visible {
		fmt.Fprintf(t.out, " panel=%q", f.Panel.Title)
	}
	fmt.Fprintln(t.out)
}
