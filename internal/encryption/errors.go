package encryption

import "errors"

var (
	// ErrInvalidKey is returned when the key is not KeySize bytes.
	ErrInvalidKey = errors.New("invalid key size")
	// ErrSizeMismatch is returned when a writer is closed after receiving a different
	// number of bytes than announced in its header.
	ErrSizeMismatch = errors.New("plaintext size does not match header")
	// ErrTooLarge is returned when a plaintext would need more than MaxChunks chunks.
	ErrTooLarge = errors.New("plaintext exceeds maximum chunk count")
	// ErrClosed is returned when writing to a closed writer.
	ErrClosed = errors.New("write to closed writer")
)
