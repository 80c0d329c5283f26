package logic

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/idelchi/foldercrypt/internal/config"
	"github.com/idelchi/foldercrypt/internal/manifest"
	"github.com/idelchi/foldercrypt/internal/selection"
	"github.com/idelchi/foldercrypt/internal/service"
)

// runCheck authenticates an encrypted folder without writing anything.
// With selection patterns it verifies that each one matches at least one entry,
// otherwise it lists the manifest.
func runCheck(ctx context.Context, cfg *config.Config, e env, log zerolog.Logger, req service.Request) error {
	var m *manifest.Manifest

	inspect := func(ctx context.Context, req service.Request, sink service.Sink) (service.Result, error) {
		var err error

		m, err = service.NewDecryptService(e.options...).Inspect(ctx, req, sink)

		return service.Result{}, err
	}

	if _, err := execute(ctx, cfg, e, log, req, inspect); err != nil {
		return fmt.Errorf("running check: %w", err)
	}

	if len(req.Select) == 0 {
		listEntries(e, m)

		return nil
	}

	failures, err := checkPatterns(e, cfg.Quiet, req.Select, m)
	if err != nil {
		return err
	}

	if failures > 0 {
		return fmt.Errorf("%d pattern(s) matched no entries", failures)
	}

	return nil
}

// checkPatterns reports how many entries each pattern matches and returns the number matching none.
func checkPatterns(e env, quiet bool, patterns []string, m *manifest.Manifest) (int, error) {
	var failures int

	for _, glob := range patterns {
		pattern, err := selection.Compile(glob)
		if err != nil {
			return 0, err
		}

		var matched int

		for _, entry := range m.Entries {
			if pattern.Match(entry.RelativePath) {
				matched++
			}
		}

		if matched == 0 {
			failures++

			fmt.Fprintf(e.stdout, "%s %q matched no entries\n", color.RedString("✗"), pattern)

			continue
		}

		if !quiet {
			fmt.Fprintf(e.stdout, "%s %q matched %d entries\n", color.GreenString("✓"), pattern, matched)
		}
	}

	return failures, nil
}

func listEntries(e env, m *manifest.Manifest) {
	if m == nil {
		return
	}

	for _, entry := range m.Entries {
		if entry.IsDirectory {
			fmt.Fprintf(e.stdout, "%s  %10s  %s/\n", fmtPerm(entry.Permissions), "-", entry.RelativePath)

			continue
		}

		fmt.Fprintf(e.stdout, "%s  %10s  %s\n",
			fmtPerm(entry.Permissions), humanize.IBytes(entry.OriginalSize), entry.RelativePath)
	}

	fmt.Fprintf(e.stdout, "%d files, %s\n", m.Files(), humanize.IBytes(m.TotalSize()))
}

func fmtPerm(perm uint32) string {
	return fmt.Sprintf("%04o", perm)
}
