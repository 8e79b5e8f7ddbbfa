// Command orrery-tui is the interactive terminal viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/tui"
	"github.com/signalsfoundry/orrery/model"
)

func main() {
	galaxyPath := flag.String("galaxy", "", "YAML galaxy layout; empty uses the built-in layout")
	fps := flag.Int("fps", 60, "target frames per second")
	sound := flag.Bool("sound", true, "play a chime on lock-on")
	logPath := flag.String("log-file", "", "write logs to this file; empty discards them")
	flag.Parse()

	if err := run(*galaxyPath, *fps, *sound, *logPath); err != nil {
		fmt.Fprintln(os.Stderr, "orrery-tui:", err)
		os.Exit(1)
	}
}

func run(galaxyPath string, fps int, sound bool, logPath string) error {
	// The screen owns the terminal, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := logging.New(logging.Config{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT"), Writer: logOut})

	galaxy, err := model.LoadGalaxyFile(galaxyPath)
	if err != nil {
		return err
	}
	eng, err := engine.New(engine.WithLogger(log), engine.WithGalaxy(galaxy))
	if err != nil {
		return err
	}
	defer eng.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	opts := []tui.Option{tui.WithLogger(log)}
	if fps > 0 {
		opts = append(opts, tui.WithFrameInterval(time.Second/time.Duration(fps)))
	}
	if sound {
		chime, err := tui.NewSpeakerChime()
		if err != nil {
			log.Warn(context.Background(), "sound disabled", logging.Err(err))
		} else {
			defer chime.Close()
			opts = append(opts, tui.WithChime(chime))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return tui.New(eng, screen, opts...).Run(ctx)
}
