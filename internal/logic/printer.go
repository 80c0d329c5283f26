package logic

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/idelchi/foldercrypt/internal/config"
	"github.com/idelchi/foldercrypt/internal/service"
)

// newLogger returns a console logger on w at the level chosen by --verbose and --quiet.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel

	switch {
	case cfg.Verbose:
		level = zerolog.DebugLevel
	case cfg.Quiet:
		level = zerolog.WarnLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// printer renders service events for a terminal.
type printer struct {
	cfg     *config.Config
	log     zerolog.Logger
	stdout  io.Writer
	spinner *spinner.Spinner
}

func newPrinter(cfg *config.Config, log zerolog.Logger, stdout, stderr io.Writer) *printer {
	const spinnerDelay = 100 * time.Millisecond

	s := spinner.New(spinner.CharSets[14], spinnerDelay, spinner.WithWriter(stderr))
	s.Suffix = " Deriving key"

	if err := s.Color("cyan"); err != nil {
		log.Debug().Err(err).Msg("spinner color unavailable")
	}

	return &printer{cfg: cfg, log: log, stdout: stdout, spinner: s}
}

func (p *printer) handle(ev service.Event) {
	log := p.log.With().Str("session", ev.Session.String()).Logger()

	switch ev.Kind {
	case service.EventState:
		log.Debug().Stringer("state", ev.State).Msg("state changed")

		if ev.State == service.DerivingKey && p.animated() {
			p.spinner.Start()
		} else {
			p.spinner.Stop()
		}

		if ev.State.Terminal() {
			log.Debug().Stringer("state", ev.State).Msg("run finished")
		}
	case service.EventProgress:
		if p.cfg.Quiet || p.cfg.NoProgress {
			return
		}

		fmt.Fprintf(p.stdout, "%s Processed %q %s\n", //nolint:errcheck
			color.GreenString("✓"), ev.Path, color.HiBlackString("(%d/%d)", ev.Done, ev.Total))
	case service.EventLog:
		entry := log.WithLevel(level(ev.Level))
		if ev.Path != "" {
			entry = entry.Str("path", ev.Path)
		}

		entry.Msg(ev.Message)
	}
}

func (p *printer) animated() bool {
	return !p.cfg.Quiet && !p.cfg.NoProgress && !p.cfg.Verbose
}

func (p *printer) stop() {
	p.spinner.Stop()
}

func level(l service.Level) zerolog.Level {
	switch l {
	case service.LevelDebug:
		return zerolog.DebugLevel
	case service.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
