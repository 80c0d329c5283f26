package encryption

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/idelchi/foldercrypt/internal/errs"
)

const (
	// Version is the only file format version this package reads and writes.
	Version = byte(1)
	// NonceSize is the size of the AES-GCM nonce.
	NonceSize = 12
	// TagSize is the size of the AES-GCM authentication tag.
	TagSize = 16
	// ChunkSize is the plaintext size of every chunk but the last.
	ChunkSize = 64 * 1024
	// MaxChunks bounds the chunk index to the 32 bits mixed into the nonce.
	MaxChunks = uint64(1) << 32
	// HeaderSize is the encoded size of Header.
	HeaderSize = 1 + NonceSize + 8

	chunkLenSize = 4
)

// Header is the fixed prefix of every encrypted file.
type Header struct {
	Version      byte
	BaseNonce    [NonceSize]byte
	OriginalSize uint64
}

// newHeader returns a header with a freshly drawn base nonce.
func newHeader(size uint64) (Header, error) {
	header := Header{Version: Version, OriginalSize: size}

	if _, err := io.ReadFull(rand.Reader, header.BaseNonce[:]); err != nil {
		return Header{}, fmt.Errorf("generating base nonce: %w", err)
	}

	return header, nil
}

// MarshalBinary encodes the header in its wire layout.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)

	buf[0] = h.Version
	copy(buf[1:1+NonceSize], h.BaseNonce[:])
	binary.BigEndian.PutUint64(buf[1+NonceSize:], h.OriginalSize)

	return buf, nil
}

// UnmarshalBinary decodes a header, rejecting unknown versions.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("%w: header is %d bytes, want %d", errs.ErrAuthenticationFailed, len(data), HeaderSize)
	}

	if data[0] != Version {
		return fmt.Errorf("%w: file version %d, expected %d", errs.ErrUnsupportedVersion, data[0], Version)
	}

	h.Version = data[0]
	copy(h.BaseNonce[:], data[1:1+NonceSize])
	h.OriginalSize = binary.BigEndian.Uint64(data[1+NonceSize:])

	if ChunkCount(h.OriginalSize) > MaxChunks {
		return fmt.Errorf("%w: declared size %d", errs.ErrAuthenticationFailed, h.OriginalSize)
	}

	return nil
}

// Chunks returns the number of chunks that follow the header.
func (h Header) Chunks() uint64 {
	return ChunkCount(h.OriginalSize)
}

// ChunkCount returns the number of chunks needed for size bytes of plaintext.
func ChunkCount(size uint64) uint64 {
	return (size + ChunkSize - 1) / ChunkSize
}

// EncryptedSize returns the size of the encrypted file for size bytes of plaintext.
func EncryptedSize(size uint64) uint64 {
	return HeaderSize + size + ChunkCount(size)*(chunkLenSize+TagSize)
}

// chunkPlainLen returns the plaintext length of chunk index in a file of size bytes.
func chunkPlainLen(size, index uint64) int {
	if rest := size - index*ChunkSize; rest < ChunkSize {
		return int(rest) //nolint:gosec // rest < ChunkSize
	}

	return ChunkSize
}

// associatedData binds the encoded header and the caller context to every chunk.
func associatedData(h Header, context []byte) []byte {
	encoded, _ := h.MarshalBinary() //nolint:errcheck // MarshalBinary never fails

	return append(encoded, context...)
}
