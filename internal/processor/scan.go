package processor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/idelchi/foldercrypt/internal/errs"
	"github.com/idelchi/foldercrypt/internal/manifest"
)

// ScanResult lists what a walk of the source tree found.
type ScanResult struct {
	// Entries in lexical walk order, sizes from the walk.
	Entries []manifest.Entry
	// Skipped holds relative paths of symlinks and special files.
	Skipped []string
}

// Scan walks root in lexical order and records every regular file and directory below it.
// The root itself is not an entry.
func Scan(fsys afero.Fs, root string) (ScanResult, error) {
	var result ScanResult

	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errs.Wrap(errs.ErrFileProcessing, path, err)
		}

		if path == root {
			return nil
		}

		rel, err := relative(root, path)
		if err != nil {
			return err
		}

		mode := info.Mode()

		switch {
		case mode.IsDir():
			result.Entries = append(result.Entries, manifest.Entry{
				RelativePath: rel,
				IsDirectory:  true,
				Permissions:  uint32(mode.Perm()),
			})
		case mode.IsRegular():
			result.Entries = append(result.Entries, manifest.Entry{
				RelativePath: rel,
				OriginalSize: uint64(info.Size()), //nolint:gosec // sizes are never negative
				Permissions:  uint32(mode.Perm()),
			})
		default:
			result.Skipped = append(result.Skipped, rel)
		}

		return nil
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("scanning %q: %w", root, err)
	}

	return result, nil
}

// relative returns path relative to root in slash form.
func relative(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", errs.Wrap(errs.ErrFileProcessing, path, err)
	}

	return filepath.ToSlash(rel), nil
}
