package service

import (
	"context"
	"fmt"

	"github.com/idelchi/foldercrypt/internal/encryption"
	"github.com/idelchi/foldercrypt/internal/errs"
	"github.com/idelchi/foldercrypt/internal/kdf"
	"github.com/idelchi/foldercrypt/internal/manifest"
	"github.com/idelchi/foldercrypt/internal/processor"
	"github.com/idelchi/foldercrypt/internal/selection"
)

// DecryptService restores encrypted folders.
type DecryptService struct {
	opts options
}

// NewDecryptService returns a decryption service.
func NewDecryptService(opts ...Option) *DecryptService {
	return &DecryptService{opts: newOptions(opts)}
}

// Run decrypts the encrypted folder req.Source into req.Destination.
// The manifest is authenticated before anything is written, so a wrong password
// fails with errs.ErrAuthenticationFailed and leaves the destination untouched.
//
//nolint:cyclop,funlen // linear state machine
func (s *DecryptService) Run(ctx context.Context, req Request, sink Sink) (Result, error) {
	r := newRun(s.opts, sink)
	fsys := s.opts.fs

	r.transition(ValidatingInputs)

	if err := validate(fsys, req); err != nil {
		return r.fail(err)
	}

	selector, err := selection.New(req.Select)
	if err != nil {
		return r.fail(errs.New(errs.ErrInvalidInput, "", err))
	}

	m, contentKey, err := s.unlock(ctx, r, req)
	if err != nil {
		return r.fail(err)
	}

	defer kdf.Wipe(contentKey)

	engine, err := encryption.NewEngine(contentKey)
	if err != nil {
		return r.fail(errs.New(errs.ErrKeyDerivation, "", err))
	}

	proc := processor.New(fsys, engine, req.Suffix)

	unknown, err := proc.Unknown(req.Source, m)
	if err != nil {
		return r.fail(err)
	}

	for _, rel := range unknown {
		r.logf(LevelWarn, rel, "%q is not listed in the manifest", rel)
	}

	r.stats.Unknown = len(unknown)

	entries := selector.Apply(m.Entries)
	if !selector.All() {
		r.logf(LevelInfo, "", "selected %d of %d entries", len(entries), len(m.Entries))

		if len(entries) == 0 {
			r.logf(LevelWarn, "", "selection matched no entries")
		}
	}

	if err := fsys.MkdirAll(req.Destination, 0o700); err != nil {
		return r.fail(errs.New(errs.ErrFileProcessing, req.Destination, fmt.Errorf("creating destination: %w", err)))
	}

	total := countFiles(entries)

	for _, entry := range entries {
		if err := cancelled(ctx); err != nil {
			return r.fail(err)
		}

		if entry.IsDirectory {
			if err := proc.RestoreDirectory(req.Destination, entry); err != nil {
				return r.fail(err)
			}

			r.stats.Directories++
		} else {
			if err := proc.RestoreFile(req.Source, req.Destination, entry); err != nil {
				return r.fail(err)
			}

			r.stats.Files++
			r.stats.Bytes += entry.OriginalSize
			r.progress(entry.RelativePath, r.stats.Files, total)
		}
	}

	r.transition(Finalizing)

	if err := proc.FinalizeDirectories(req.Destination, entries); err != nil {
		return r.fail(err)
	}

	return r.complete()
}

// Inspect authenticates the encrypted folder req.Source and returns its manifest.
// Nothing is written; req.Destination is ignored.
func (s *DecryptService) Inspect(ctx context.Context, req Request, sink Sink) (*manifest.Manifest, error) {
	r := newRun(s.opts, sink)

	r.transition(ValidatingInputs)

	if err := validateSource(s.opts.fs, req); err != nil {
		_, err = r.fail(err)

		return nil, err
	}

	m, contentKey, err := s.unlock(ctx, r, req)
	if err != nil {
		_, err = r.fail(err)

		return nil, err
	}

	kdf.Wipe(contentKey)
	r.transition(Completed)

	return m, nil
}

// unlock reads the artifacts, derives the keys and authenticates the manifest.
// It returns the content key, which the caller wipes, and leaves r in ProcessingFiles.
func (s *DecryptService) unlock(ctx context.Context, r *run, req Request) (*manifest.Manifest, []byte, error) {
	fsys := s.opts.fs

	salt, err := processor.ReadSalt(fsys, req.Source)
	if err != nil {
		return nil, nil, err
	}

	blob, err := processor.ReadManifestBlob(fsys, req.Source)
	if err != nil {
		return nil, nil, err
	}

	if err := cancelled(ctx); err != nil {
		return nil, nil, err
	}

	r.transition(DerivingKey)

	spec := kdf.Spec{Algorithm: req.algorithm(), Salt: salt, Params: s.opts.params}

	contentKey, manifestKey, err := deriveKeys(req.Password, spec)
	if err != nil {
		return nil, nil, err
	}

	defer kdf.Wipe(manifestKey)

	r.logf(LevelDebug, "", "derived key using %s", spec.Algorithm)

	r.transition(ProcessingFiles)

	m, err := manifest.Open(manifestKey, blob)
	if err != nil {
		kdf.Wipe(contentKey)

		return nil, nil, errs.Wrap(errs.ErrAuthenticationFailed, processor.ManifestFile, err)
	}

	return m, contentKey, nil
}
