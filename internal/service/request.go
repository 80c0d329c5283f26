package service

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/idelchi/foldercrypt/internal/errs"
	"github.com/idelchi/foldercrypt/internal/kdf"
)

// Request describes one encryption or decryption run.
type Request struct {
	Source      string
	Destination string
	Password    string //nolint:gosec // never logged
	// Algorithm defaults to PBKDF2 and must match between encryption and decryption.
	Algorithm kdf.Algorithm
	// Overwrite allows writing into an existing destination.
	Overwrite bool
	// Suffix of encrypted files, processor.DefaultSuffix when empty.
	Suffix string
	// Select restricts decryption to entries matching these find -path globs.
	Select []string
}

func (r Request) algorithm() kdf.Algorithm {
	if r.Algorithm == 0 {
		return kdf.PBKDF2
	}

	return r.Algorithm
}

// Stats summarizes a run.
type Stats struct {
	Files       int
	Directories int
	Bytes       uint64 // plaintext bytes processed
	Skipped     int    // symlinks and special files left out during encryption
	Unknown     int    // paths in an encrypted folder missing from its manifest
	Duration    time.Duration
}

// Result is the outcome of a run.
type Result struct {
	Session uuid.UUID
	State   State
	Stats   Stats
	Err     error
}

// validate checks a request before any key material is derived.
func validate(fsys afero.Fs, req Request) error {
	if err := validateSource(fsys, req); err != nil {
		return err
	}

	if req.Destination == "" {
		return errs.New(errs.ErrInvalidInput, "", errors.New("destination must be set"))
	}

	if err := checkOverlap(req.Source, req.Destination); err != nil {
		return err
	}

	info, err := fsys.Stat(req.Destination)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return errs.New(errs.ErrInvalidInput, req.Destination, fmt.Errorf("destination: %w", err))
	case !info.IsDir():
		return errs.New(errs.ErrInvalidInput, req.Destination, errors.New("destination exists and is not a directory"))
	case !req.Overwrite:
		return errs.New(errs.ErrInvalidInput, req.Destination, errors.New("destination exists, overwrite not granted"))
	}

	return nil
}

// validateSource checks the password and that the source is a readable directory,
// not a symbolic link to one.
func validateSource(fsys afero.Fs, req Request) error {
	if req.Password == "" {
		return errs.New(errs.ErrInvalidInput, "", errors.New("password must not be empty"))
	}

	if strings.ContainsRune(req.Suffix, filepath.Separator) {
		return errs.New(errs.ErrInvalidInput, "", fmt.Errorf("suffix %q contains a path separator", req.Suffix))
	}

	info, err := fsys.Stat(req.Source)
	if err != nil {
		return errs.New(errs.ErrInvalidInput, req.Source, fmt.Errorf("source: %w", err))
	}

	if lstater, ok := fsys.(afero.Lstater); ok {
		if link, _, err := lstater.LstatIfPossible(req.Source); err == nil && link.Mode()&fs.ModeSymlink != 0 {
			return errs.New(errs.ErrInvalidInput, req.Source,
				errors.New("source is a symbolic link, pass the directory it points to"))
		}
	}

	if !info.IsDir() {
		return errs.New(errs.ErrInvalidInput, req.Source, errors.New("source is not a directory"))
	}

	dir, err := fsys.Open(req.Source)
	if err != nil {
		return errs.New(errs.ErrInvalidInput, req.Source, fmt.Errorf("source is not readable: %w", err))
	}

	if _, err := dir.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		dir.Close()

		return errs.New(errs.ErrInvalidInput, req.Source, fmt.Errorf("source is not readable: %w", err))
	}

	dir.Close()

	return nil
}

// checkOverlap rejects a destination inside the source or the other way around.
func checkOverlap(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return errs.New(errs.ErrInvalidInput, src, err)
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return errs.New(errs.ErrInvalidInput, dst, err)
	}

	if within(absSrc, absDst) || within(absDst, absSrc) {
		return errs.New(errs.ErrInvalidInput, dst, errors.New("source and destination overlap"))
	}

	return nil
}

// within reports whether path equals root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
