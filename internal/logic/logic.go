// Package logic runs the encryption service on behalf of the command line.
package logic

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/idelchi/foldercrypt/internal/config"
	"github.com/idelchi/foldercrypt/internal/kdf"
	"github.com/idelchi/foldercrypt/internal/selection"
	"github.com/idelchi/foldercrypt/internal/service"
)

// env bundles the process-level collaborators of a run.
type env struct {
	fs      afero.Fs
	stdout  io.Writer
	stderr  io.Writer
	prompt  func(confirm bool) (string, error)
	options []service.Option
}

func defaultEnv() env {
	fsys := afero.NewOsFs()

	return env{
		fs:      fsys,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		prompt:  promptPassword,
		options: []service.Option{service.WithFs(fsys)},
	}
}

// Run is the main logic of the application.
func Run(ctx context.Context, cfg *config.Config) error {
	return run(ctx, cfg, defaultEnv())
}

func run(ctx context.Context, cfg *config.Config, e env) error {
	log := newLogger(cfg, e.stderr)

	req, err := request(cfg, e, log)
	if err != nil {
		return err
	}

	if cfg.Mode == config.Check {
		return runCheck(ctx, cfg, e, log, req)
	}

	var job func(context.Context, service.Request, service.Sink) (service.Result, error)

	switch cfg.Mode {
	case config.Decrypt:
		job = service.NewDecryptService(e.options...).Run
	default:
		job = service.NewEncryptService(e.options...).Run
	}

	result, err := execute(ctx, cfg, e, log, req, job)

	if cfg.Stats {
		printStats(e.stderr, result)
	}

	if err != nil {
		return fmt.Errorf("running %s: %w", verb(cfg.Mode), err)
	}

	return nil
}

// request assembles the service request from the configuration.
func request(cfg *config.Config, e env, log zerolog.Logger) (service.Request, error) {
	alg, err := kdf.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return service.Request{}, err
	}

	password, err := resolvePassword(e.fs, cfg, log, e.prompt)
	if err != nil {
		return service.Request{}, err
	}

	if cfg.Mode == config.Encrypt && !cfg.SkipPasswordCheck {
		ok, note := checkStrength(password)
		if !ok {
			return service.Request{}, fmt.Errorf("password rejected: %s", note)
		}

		log.Info().Msg(note)
	}

	patterns := append([]string{}, cfg.Select...)

	if cfg.SelectFrom != "" {
		loaded, err := selection.LoadPatterns(e.fs, cfg.SelectFrom)
		if err != nil {
			return service.Request{}, fmt.Errorf("loading selection: %w", err)
		}

		patterns = append(patterns, loaded...)
	}

	return service.Request{
		Source:      cfg.Source,
		Destination: cfg.Destination,
		Password:    password,
		Algorithm:   alg,
		Overwrite:   cfg.Force,
		Suffix:      cfg.Suffix,
		Select:      patterns,
	}, nil
}

// execute runs job on a background goroutine while a printer goroutine renders its events.
func execute(
	ctx context.Context,
	cfg *config.Config,
	e env,
	log zerolog.Logger,
	req service.Request,
	job func(context.Context, service.Request, service.Sink) (service.Result, error),
) (service.Result, error) {
	const eventBuffer = 64

	events := make(chan service.Event, eventBuffer)
	p := newPrinter(cfg, log, e.stdout, e.stderr)

	var result service.Result

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(events)

		var err error

		result, err = job(ctx, req, service.ChannelSink(gctx, events))

		return err
	})

	group.Go(func() error {
		for ev := range events {
			p.handle(ev)
		}

		return nil
	})

	err := group.Wait()

	p.stop()

	return result, err
}

func verb(mode config.Mode) string {
	switch mode {
	case config.Decrypt:
		return "decryption"
	case config.Check:
		return "check"
	default:
		return "encryption"
	}
}

func printStats(w io.Writer, result service.Result) {
	stats := result.Stats

	fmt.Fprintf(w, "\nStats\n")
	fmt.Fprintf(w, "  Session:     %s\n", result.Session)
	fmt.Fprintf(w, "  State:       %s\n", result.State)
	fmt.Fprintf(w, "  Files:       %d\n", stats.Files)
	fmt.Fprintf(w, "  Directories: %d\n", stats.Directories)
	fmt.Fprintf(w, "  Skipped:     %d\n", stats.Skipped)
	fmt.Fprintf(w, "  Unknown:     %d\n", stats.Unknown)
	fmt.Fprintf(w, "  Size:        %s\n", humanize.IBytes(stats.Bytes))
	fmt.Fprintf(w, "  Duration:    %s\n", stats.Duration.Round(time.Millisecond))
}
