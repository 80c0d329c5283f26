// Package processor maps a folder tree onto encrypted files and back.
//
// It owns every filesystem side effect of an encryption or decryption pass:
// walking the source, streaming file bodies through the engine into atomic
// temp writes, and reading or writing the salt and manifest artifacts.
// All access goes through an afero.Fs.
package processor

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/idelchi/foldercrypt/internal/encryption"
)

const (
	// SaltFile holds the raw key derivation salt at the root of an encrypted folder.
	SaltFile = ".salt"
	// ManifestFile holds the sealed manifest at the root of an encrypted folder.
	ManifestFile = ".folder_crypto_metadata.enc"
	// DefaultSuffix is appended to every encrypted file name.
	DefaultSuffix = ".encrypted"
)

const (
	privateDir  = 0o700
	privateFile = 0o600
)

// Processor performs per-entry work for one pass under one content key.
type Processor struct {
	fs     afero.Fs
	engine *encryption.Engine
	suffix string
}

// New returns a processor writing through fsys.
// An empty suffix selects DefaultSuffix.
func New(fsys afero.Fs, engine *encryption.Engine, suffix string) *Processor {
	if suffix == "" {
		suffix = DefaultSuffix
	}

	return &Processor{fs: fsys, engine: engine, suffix: suffix}
}

// join resolves a slash-separated relative path below root.
func join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
