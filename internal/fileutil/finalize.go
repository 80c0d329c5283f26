// Package fileutil provides shared file operation helpers.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// TempContext holds state for an atomic file write operation.
type TempContext struct {
	Fs      afero.Fs
	TmpFile afero.File
	TmpName string
}

// NewTempContext creates a temp file next to outPath for atomic writing.
// Caller must defer CleanupOnError.
func NewTempContext(fsys afero.Fs, outPath string) (*TempContext, error) {
	tmpFile, err := afero.TempFile(fsys, filepath.Dir(outPath), ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	return &TempContext{
		Fs:      fsys,
		TmpFile: tmpFile,
		TmpName: tmpFile.Name(),
	}, nil
}

// CleanupOnError closes the temp file and removes it if the write failed.
func (tc *TempContext) CleanupOnError(errp *error) {
	tc.TmpFile.Close() //nolint:errcheck,gosec // best-effort cleanup

	if *errp != nil {
		tc.Fs.Remove(tc.TmpName) //nolint:errcheck,gosec // best-effort cleanup
	}
}

// Commit applies perm, closes the temp file and renames it onto outPath.
// It returns the size of the committed file.
func (tc *TempContext) Commit(outPath string, perm os.FileMode) (int64, error) {
	if err := tc.TmpFile.Close(); err != nil {
		return 0, fmt.Errorf("closing temporary file: %w", err)
	}

	if err := tc.Fs.Chmod(tc.TmpName, perm); err != nil {
		return 0, fmt.Errorf("setting file permissions: %w", err)
	}

	if err := tc.Fs.Rename(tc.TmpName, outPath); err != nil {
		return 0, fmt.Errorf("renaming output file: %w", err)
	}

	info, err := tc.Fs.Stat(outPath)
	if err != nil {
		return 0, fmt.Errorf("stat output %q: %w", outPath, err)
	}

	return info.Size(), nil
}

// WriteFileAtomic writes data to outPath through a temp file and rename.
func WriteFileAtomic(fsys afero.Fs, outPath string, data []byte, perm os.FileMode) (err error) {
	tc, err := NewTempContext(fsys, outPath)
	if err != nil {
		return fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	if _, err = tc.TmpFile.Write(data); err != nil {
		return fmt.Errorf("writing %q: %w", outPath, err)
	}

	if _, err = tc.Commit(outPath, perm); err != nil {
		return err
	}

	return nil
}
