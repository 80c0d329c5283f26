package service

import (
	"context"
	"fmt"

	"github.com/idelchi/foldercrypt/internal/encryption"
	"github.com/idelchi/foldercrypt/internal/errs"
	"github.com/idelchi/foldercrypt/internal/kdf"
	"github.com/idelchi/foldercrypt/internal/manifest"
	"github.com/idelchi/foldercrypt/internal/processor"
)

// EncryptService encrypts folders.
type EncryptService struct {
	opts options
}

// NewEncryptService returns an encryption service.
func NewEncryptService(opts ...Option) *EncryptService {
	return &EncryptService{opts: newOptions(opts)}
}

// Run encrypts req.Source into req.Destination.
// The returned Result is populated on success and failure alike.
//
//nolint:cyclop,funlen // linear state machine
func (s *EncryptService) Run(ctx context.Context, req Request, sink Sink) (Result, error) {
	r := newRun(s.opts, sink)
	fsys := s.opts.fs

	r.transition(ValidatingInputs)

	if err := validate(fsys, req); err != nil {
		return r.fail(err)
	}

	if err := cancelled(ctx); err != nil {
		return r.fail(err)
	}

	r.transition(DerivingKey)

	spec, err := kdf.NewSpec(req.algorithm(), s.opts.params)
	if err != nil {
		return r.fail(err)
	}

	contentKey, manifestKey, err := deriveKeys(req.Password, spec)
	if err != nil {
		return r.fail(err)
	}

	defer kdf.Wipe(contentKey)
	defer kdf.Wipe(manifestKey)

	r.logf(LevelDebug, "", "derived key using %s", spec.Algorithm)

	r.transition(ProcessingFiles)

	scanned, err := processor.Scan(fsys, req.Source)
	if err != nil {
		return r.fail(err)
	}

	for _, rel := range scanned.Skipped {
		r.logf(LevelWarn, rel, "skipping %q: not a regular file or directory", rel)
	}

	r.stats.Skipped = len(scanned.Skipped)

	engine, err := encryption.NewEngine(contentKey)
	if err != nil {
		return r.fail(errs.New(errs.ErrKeyDerivation, "", err))
	}

	proc := processor.New(fsys, engine, req.Suffix)

	if err := fsys.MkdirAll(req.Destination, 0o700); err != nil {
		return r.fail(errs.New(errs.ErrFileProcessing, req.Destination, fmt.Errorf("creating destination: %w", err)))
	}

	m := manifest.New()
	total := countFiles(scanned.Entries)

	for _, entry := range scanned.Entries {
		if err := cancelled(ctx); err != nil {
			return r.fail(err)
		}

		if entry.IsDirectory {
			if err := proc.EncryptDirectory(req.Destination, entry); err != nil {
				return r.fail(err)
			}

			r.stats.Directories++
		} else {
			entry, err = proc.EncryptFile(req.Source, req.Destination, entry)
			if err != nil {
				return r.fail(err)
			}

			r.stats.Files++
			r.stats.Bytes += entry.OriginalSize
			r.progress(entry.RelativePath, r.stats.Files, total)
		}

		m.Add(entry)
	}

	r.transition(Finalizing)

	sealed, err := manifest.Seal(manifestKey, m)
	if err != nil {
		return r.fail(err)
	}

	if err := proc.WriteArtifacts(req.Destination, spec.Salt, sealed); err != nil {
		return r.fail(err)
	}

	return r.complete()
}
