package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

// KeySize is the required key size (AES-256).
const KeySize = 32

// Engine seals and opens files under a single key.
type Engine struct {
	aead cipher.AEAD
}

// NewEngine creates an AES-256-GCM engine.
func NewEngine(key []byte) (*Engine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Engine{aead: aead}, nil
}

// NewWriter writes a fresh header for a plaintext of exactly size bytes to w
// and returns a writer that encrypts everything written to it.
// context is bound to every chunk and must be supplied again to NewReader.
func (e *Engine) NewWriter(w io.Writer, size uint64, context []byte) (*Writer, error) {
	return newWriter(w, e.aead, size, context)
}

// NewReader reads the header from r and returns a reader of authenticated plaintext.
func (e *Engine) NewReader(r io.Reader, context []byte) (*Reader, error) {
	return newReader(r, e.aead, context)
}

// Encrypt streams size bytes from src into dst in the encrypted format.
func (e *Engine) Encrypt(dst io.Writer, src io.Reader, size uint64, context []byte) (Header, error) {
	writer, err := e.NewWriter(dst, size, context)
	if err != nil {
		return Header{}, err
	}

	buf, ok := bufferPool.Get().([]byte)
	if !ok {
		return Header{}, errors.New("invalid buffer type from pool") //nolint:err113
	}

	defer bufferPool.Put(buf) //nolint:staticcheck

	if _, err := io.CopyBuffer(writer, io.LimitReader(src, int64(size)), buf); err != nil { //nolint:gosec
		return Header{}, fmt.Errorf("encrypting: %w", err)
	}

	if err := writer.Close(); err != nil {
		return Header{}, err
	}

	return writer.Header(), nil
}

// Decrypt streams the encrypted file in src into dst as plaintext.
// On error dst may hold a verified prefix of the plaintext, which the caller must discard.
func (e *Engine) Decrypt(dst io.Writer, src io.Reader, context []byte) (Header, error) {
	reader, err := e.NewReader(src, context)
	if err != nil {
		return Header{}, err
	}

	buf, ok := bufferPool.Get().([]byte)
	if !ok {
		return Header{}, errors.New("invalid buffer type from pool") //nolint:err113
	}

	defer bufferPool.Put(buf) //nolint:staticcheck

	if _, err := io.CopyBuffer(dst, reader, buf); err != nil {
		return reader.Header(), fmt.Errorf("decrypting: %w", err)
	}

	return reader.Header(), nil
}
