package manifest

import (
	"fmt"

	"github.com/tink-crypto/tink-go/v2/aead/subtle"

	"github.com/idelchi/foldercrypt/internal/errs"
)

const (
	// NonceSize is the size of the random nonce prefixed to a sealed manifest.
	NonceSize = 12
	// TagSize is the size of the authentication tag suffixed to a sealed manifest.
	TagSize = 16
)

// associatedData separates manifest ciphertexts from every other use of the key.
var associatedData = []byte("metadata") //nolint:gochecknoglobals

// Seal serializes m and encrypts it as one AES-256-GCM message laid out as
// nonce ‖ ciphertext ‖ tag, under a freshly drawn nonce.
func Seal(key []byte, m *Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	plain, err := m.Marshal()
	if err != nil {
		return nil, err
	}

	aead, err := subtle.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("creating manifest cipher: %w", err)
	}

	sealed, err := aead.Encrypt(plain, associatedData)
	if err != nil {
		return nil, fmt.Errorf("encrypting manifest: %w", err)
	}

	return sealed, nil
}

// Open authenticates, decrypts and validates a sealed manifest.
// Any tag mismatch is reported as errs.ErrAuthenticationFailed.
func Open(key []byte, sealed []byte) (*Manifest, error) {
	if len(sealed) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: manifest is %d bytes", errs.ErrAuthenticationFailed, len(sealed))
	}

	aead, err := subtle.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("creating manifest cipher: %w", err)
	}

	plain, err := aead.Decrypt(sealed, associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest", errs.ErrAuthenticationFailed)
	}

	return Unmarshal(plain)
}
