// Package service orchestrates whole-folder encryption and decryption runs.
//
// A run moves through ValidatingInputs, DerivingKey, ProcessingFiles and Finalizing
// and ends in Completed or Failed. Every transition, per-file progress step and
// warning is reported to the caller's Sink. The first error aborts the run; files
// already written stay in place.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/idelchi/foldercrypt/internal/errs"
	"github.com/idelchi/foldercrypt/internal/kdf"
	"github.com/idelchi/foldercrypt/internal/manifest"
)

// run carries the state of one invocation.
type run struct {
	emitter

	opts  options
	start time.Time
	stats Stats
}

func newRun(opts options, sink Sink) *run {
	return &run{
		emitter: emitter{session: uuid.New(), sink: sink, state: Idle},
		opts:    opts,
		start:   time.Now(),
	}
}

func (r *run) result(state State, err error) Result {
	stats := r.stats
	stats.Duration = time.Since(r.start)

	return Result{Session: r.session, State: state, Stats: stats, Err: err}
}

// fail classifies err, stamps it with the current state and ends the run.
func (r *run) fail(err error) (Result, error) {
	err = errs.WithPhase(errs.Wrap(errs.ErrFileProcessing, "", err), r.state.String())

	r.transition(Failed)

	return r.result(Failed, err), err
}

func (r *run) complete() (Result, error) {
	r.transition(Completed)

	return r.result(Completed, nil), nil
}

// cancelled is checked between entries, never inside one.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.New(errs.ErrCancelled, "", err)
	}

	return nil
}

// countFiles returns the number of file entries, the unit of progress.
func countFiles(entries []manifest.Entry) int {
	var n int

	for _, e := range entries {
		if !e.IsDirectory {
			n++
		}
	}

	return n
}

// deriveKeys turns the password into the content and manifest subkeys.
// The master key is wiped before returning; the caller wipes the subkeys.
func deriveKeys(password string, spec kdf.Spec) (content, manifest []byte, err error) {
	key, err := kdf.Derive(password, spec)
	if err != nil {
		return nil, nil, err
	}

	defer kdf.Wipe(key)

	return kdf.Subkeys(key)
}
