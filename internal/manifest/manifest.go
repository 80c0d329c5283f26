// Package manifest records the structure of an encrypted folder.
//
// The manifest lists every file and directory below the source root with its size
// and permission bits. It is serialized as JSON and sealed as a single AEAD blob,
// which is always opened before any file body so a wrong password is detected early.
package manifest

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/idelchi/foldercrypt/internal/errs"
)

// Version is the manifest format version.
const Version = uint8(1)

// Entry describes one file or directory relative to the folder root.
type Entry struct {
	RelativePath  string `json:"relative_path"`
	OriginalSize  uint64 `json:"original_size"`
	EncryptedSize uint64 `json:"encrypted_size"`
	IsDirectory   bool   `json:"is_directory"`
	Permissions   uint32 `json:"permissions"`
}

// Manifest is the ordered list of entries of an encrypted folder.
type Manifest struct {
	Version uint8   `json:"version"`
	Entries []Entry `json:"files"`
}

// New returns an empty manifest of the current version.
func New() *Manifest {
	return &Manifest{Version: Version, Entries: []Entry{}}
}

// Add appends an entry.
func (m *Manifest) Add(entry Entry) {
	m.Entries = append(m.Entries, entry)
}

// Files returns the number of file entries.
func (m *Manifest) Files() int {
	var n int

	for _, e := range m.Entries {
		if !e.IsDirectory {
			n++
		}
	}

	return n
}

// TotalSize returns the summed plaintext size of all files.
func (m *Manifest) TotalSize() uint64 {
	var total uint64

	for _, e := range m.Entries {
		total += e.OriginalSize
	}

	return total
}

// Index maps every relative path to its entry.
func (m *Manifest) Index() map[string]Entry {
	index := make(map[string]Entry, len(m.Entries))

	for _, e := range m.Entries {
		index[e.RelativePath] = e
	}

	return index
}

// Marshal serializes the manifest.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	return data, nil
}

// Unmarshal parses and validates a serialized manifest.
func Unmarshal(data []byte) (*Manifest, error) {
	var m Manifest

	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", errs.ErrInvalidManifest, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks the structural invariants a decryptor relies on.
func (m *Manifest) Validate() error {
	if m.Version != Version {
		return fmt.Errorf("%w: manifest version %d, expected %d", errs.ErrUnsupportedVersion, m.Version, Version)
	}

	seen := make(map[string]bool, len(m.Entries))

	for _, e := range m.Entries {
		if err := validatePath(e.RelativePath); err != nil {
			return err
		}

		if _, dup := seen[e.RelativePath]; dup {
			return fmt.Errorf("%w: duplicate entry %q", errs.ErrInvalidManifest, e.RelativePath)
		}

		if e.IsDirectory && (e.OriginalSize != 0 || e.EncryptedSize != 0) {
			return fmt.Errorf("%w: directory %q has a size", errs.ErrInvalidManifest, e.RelativePath)
		}

		const permMask = 0o7777
		if e.Permissions&^permMask != 0 {
			return fmt.Errorf("%w: invalid permissions %o on %q", errs.ErrInvalidManifest, e.Permissions, e.RelativePath)
		}

		seen[e.RelativePath] = e.IsDirectory
	}

	for p := range seen {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if isDir, ok := seen[dir]; ok && !isDir {
				return fmt.Errorf("%w: %q is nested below file %q", errs.ErrInvalidManifest, p, dir)
			}
		}
	}

	return nil
}

// validatePath accepts only clean, relative, slash-separated paths that stay below the root.
func validatePath(p string) error {
	switch {
	case p == "" || p == ".":
		return fmt.Errorf("%w: empty path", errs.ErrInvalidManifest)
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("%w: path %q is not relative", errs.ErrInvalidManifest, p)
	case path.Clean(p) != p:
		return fmt.Errorf("%w: path %q is not clean", errs.ErrInvalidManifest, p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf("%w: path %q escapes the root", errs.ErrInvalidManifest, p)
	}

	return nil
}
