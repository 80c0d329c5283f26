package commands

import (
	"github.com/idelchi/foldercrypt/internal/errs"
)

// Hint returns a short suggestion for the kind of err, or an empty string.
func Hint(err error) string {
	switch errs.KindOf(err) { //nolint:errorlint // KindOf returns the sentinel itself
	case errs.ErrAuthenticationFailed:
		return "check the password and --algorithm; otherwise the data was modified"
	case errs.ErrMissingArtifacts:
		return "SRC does not look like a folder produced by foldercrypt encrypt"
	case errs.ErrUnsupportedVersion:
		return "the folder was written by a newer version of foldercrypt"
	case errs.ErrCancelled:
		return "files processed before the interruption were kept"
	case errs.ErrInvalidInput:
		return "see foldercrypt --help"
	default:
		return ""
	}
}
