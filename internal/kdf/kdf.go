// Package kdf turns a password and salt into AES-256 key material.
//
// Two algorithms are supported: PBKDF2-HMAC-SHA256 (default) and Argon2id.
// Keys derived with one algorithm never match the other, so the choice made at
// encryption time must be supplied again at decryption time.
package kdf

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"

	"github.com/idelchi/foldercrypt/internal/errs"
)

const (
	// KeySize is the size of every derived key (AES-256).
	KeySize = 32
	// SaltSize is the size of the per-session salt.
	SaltSize = 32

	// DefaultIterations is the PBKDF2 iteration count.
	DefaultIterations = 600_000
	// DefaultMemory is the Argon2id memory cost in KiB (64 MiB).
	DefaultMemory = 64 * 1024
	// DefaultTime is the number of Argon2id passes.
	DefaultTime = 3
	// DefaultThreads is the number of Argon2id lanes.
	DefaultThreads = 4
)

// Algorithm selects the password hashing function.
type Algorithm byte

const (
	// PBKDF2 is PBKDF2-HMAC-SHA256.
	PBKDF2 Algorithm = iota + 1
	// Argon2id is the Argon2id memory-hard function.
	Argon2id
)

func (a Algorithm) String() string {
	switch a {
	case PBKDF2:
		return "pbkdf2"
	case Argon2id:
		return "argon2id"
	default:
		return fmt.Sprintf("algorithm(%d)", byte(a))
	}
}

// ParseAlgorithm maps a user supplied name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pbkdf2", "pbkdf2-sha256", "pbkdf2-hmac-sha256":
		return PBKDF2, nil
	case "argon2", "argon2id":
		return Argon2id, nil
	default:
		return 0, errs.New(errs.ErrKeyDerivation, "", fmt.Errorf("unknown algorithm %q", name))
	}
}

// Params holds the cost parameters of both algorithms.
// Only the fields of the selected algorithm are consulted.
type Params struct {
	Iterations int    // PBKDF2 iterations
	Memory     uint32 // Argon2id memory in KiB
	Time       uint32 // Argon2id passes
	Threads    uint8  // Argon2id lanes
}

// DefaultParams returns the production cost parameters.
func DefaultParams() Params {
	return Params{
		Iterations: DefaultIterations,
		Memory:     DefaultMemory,
		Time:       DefaultTime,
		Threads:    DefaultThreads,
	}
}

// Spec fully determines a derived key, together with the password.
type Spec struct {
	Algorithm Algorithm
	Salt      []byte
	Params    Params
}

// NewSpec returns a spec with a freshly drawn salt.
func NewSpec(alg Algorithm, params Params) (Spec, error) {
	salt, err := NewSalt()
	if err != nil {
		return Spec{}, err
	}

	spec := Spec{Algorithm: alg, Salt: salt, Params: params}

	return spec, spec.Validate()
}

// NewSalt draws SaltSize bytes from the system CSPRNG.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	return salt, nil
}

// Validate reports misconfigured parameters as key derivation errors.
func (s Spec) Validate() error {
	if len(s.Salt) != SaltSize {
		return errs.New(errs.ErrKeyDerivation, "", fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(s.Salt)))
	}

	switch s.Algorithm {
	case PBKDF2:
		if s.Params.Iterations <= 0 {
			return errs.New(errs.ErrKeyDerivation, "", fmt.Errorf("pbkdf2 iterations must be positive"))
		}
	case Argon2id:
		if s.Params.Memory == 0 || s.Params.Time == 0 || s.Params.Threads == 0 {
			return errs.New(errs.ErrKeyDerivation, "", fmt.Errorf("argon2id memory, time and threads must be positive"))
		}
	default:
		return errs.New(errs.ErrKeyDerivation, "", fmt.Errorf("unsupported algorithm %s", s.Algorithm))
	}

	return nil
}

// Derive computes the KeySize-byte key for password under spec.
// It is deterministic and intentionally slow.
func Derive(password string, spec Spec) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	secret := []byte(password)
	defer Wipe(secret)

	switch spec.Algorithm {
	case Argon2id:
		return argon2.IDKey(secret, spec.Salt, spec.Params.Time, spec.Params.Memory, spec.Params.Threads, KeySize), nil
	default:
		return pbkdf2.Key(secret, spec.Salt, spec.Params.Iterations, KeySize, sha256.New), nil
	}
}

// Subkeys splits a derived key into independent content and manifest keys.
func Subkeys(key []byte) (content, manifest []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, errs.New(errs.ErrKeyDerivation, "", fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key)))
	}

	content, err = expand(key, "foldercrypt/content")
	if err != nil {
		return nil, nil, err
	}

	manifest, err = expand(key, "foldercrypt/manifest")
	if err != nil {
		Wipe(content)

		return nil, nil, err
	}

	return content, manifest, nil
}

func expand(key []byte, info string) ([]byte, error) {
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(info)), out); err != nil {
		return nil, errs.New(errs.ErrKeyDerivation, "", fmt.Errorf("expanding %s key: %w", info, err))
	}

	return out, nil
}

// Wipe zeroes key material in place.
func Wipe(b []byte) {
	clear(b)
}
