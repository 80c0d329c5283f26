// Package errs defines the error taxonomy shared by the encryption core.
//
// Every failure surfaced by a service call is an *Error whose Kind is one of the
// sentinels below, so callers can branch with errors.Is:
//
//	if errors.Is(err, errs.ErrAuthenticationFailed) {
//		// wrong password or corrupted data
//	}
//
// Messages carry the phase and path but never the password or key material.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyDerivation is returned when key derivation parameters are misconfigured.
	ErrKeyDerivation = errors.New("key derivation error")
	// ErrAuthenticationFailed is returned for any AEAD tag mismatch.
	// Wrong passwords and tampered data are deliberately indistinguishable.
	ErrAuthenticationFailed = errors.New("authentication failed: wrong password or corrupted data")
	// ErrMissingArtifacts is returned when the salt or manifest is absent from an encrypted folder.
	ErrMissingArtifacts = errors.New("missing salt or manifest")
	// ErrUnsupportedVersion is returned for files written with an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported format version")
	// ErrFileProcessing is returned for I/O failures.
	ErrFileProcessing = errors.New("file processing error")
	// ErrInvalidManifest is returned when an authenticated manifest is structurally invalid.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCancelled is returned when the caller cancels an operation between files.
	ErrCancelled = errors.New("operation cancelled")
)

// Error decorates an underlying error with its kind and the context needed to act on it.
type Error struct {
	Kind  error  // One of the sentinels in this package
	Phase string // State the operation was in when it failed
	Path  string // Relative path of the affected entry, if any
	Err   error  // Underlying cause
}

func (e *Error) Error() string {
	msg := e.Kind.Error()

	if e.Err != nil && !errors.Is(e.Err, e.Kind) {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	} else if e.Err != nil {
		msg = e.Err.Error()
	}

	switch {
	case e.Phase != "" && e.Path != "":
		return fmt.Sprintf("%s %q: %s", e.Phase, e.Path, msg)
	case e.Phase != "":
		return fmt.Sprintf("%s: %s", e.Phase, msg)
	case e.Path != "":
		return fmt.Sprintf("%q: %s", e.Path, msg)
	default:
		return msg
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// New creates an Error of the given kind.
func New(kind error, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Wrap returns err unchanged if it already carries a kind, otherwise wraps it as kind.
// A nil err stays nil.
func Wrap(kind error, path string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		if typed.Path == "" {
			typed.Path = path
		}

		return typed
	}

	for _, known := range kinds {
		if errors.Is(err, known) {
			return &Error{Kind: known, Path: path, Err: err}
		}
	}

	return &Error{Kind: kind, Path: path, Err: err}
}

// WithPhase stamps the phase onto err if it is an *Error without one.
func WithPhase(err error, phase string) error {
	var typed *Error
	if errors.As(err, &typed) && typed.Phase == "" {
		typed.Phase = phase
	}

	return err
}

// KindOf returns the kind of err, or nil if err carries none.
func KindOf(err error) error {
	for _, known := range kinds {
		if errors.Is(err, known) {
			return known
		}
	}

	return nil
}

//nolint:gochecknoglobals
var kinds = []error{
	ErrAuthenticationFailed,
	ErrUnsupportedVersion,
	ErrMissingArtifacts,
	ErrInvalidManifest,
	ErrKeyDerivation,
	ErrCancelled,
	ErrInvalidInput,
	ErrFileProcessing,
}
