package encryption

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/idelchi/foldercrypt/internal/errs"
)

// Reader decrypts the chunked format and yields only authenticated plaintext.
// The first failure is sticky: once a chunk fails to open, every later Read
// returns the same error, and the consumer must discard what it already staged.
type Reader struct {
	r      io.Reader
	aead   cipher.AEAD
	header Header
	ad     []byte

	sealed []byte
	plain  []byte
	pos    int
	index  uint64

	err error
}

func newReader(r io.Reader, aead cipher.AEAD, context []byte) (*Reader, error) {
	encoded := make([]byte, HeaderSize)

	if _, err := io.ReadFull(r, encoded); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated header", errs.ErrAuthenticationFailed)
		}

		return nil, fmt.Errorf("reading header: %w", err)
	}

	var header Header
	if err := header.UnmarshalBinary(encoded); err != nil {
		return nil, err
	}

	return &Reader{
		r:      r,
		aead:   aead,
		header: header,
		ad:     associatedData(header, context),
		sealed: make([]byte, 0, ChunkSize+TagSize),
		plain:  make([]byte, 0, ChunkSize),
	}, nil
}

// Header returns the header read from the stream.
func (sr *Reader) Header() Header {
	return sr.header
}

// Read implements io.Reader.
func (sr *Reader) Read(p []byte) (int, error) {
	for sr.pos >= len(sr.plain) {
		if sr.err != nil {
			return 0, sr.err
		}

		sr.err = sr.openChunk()
	}

	n := copy(p, sr.plain[sr.pos:])
	sr.pos += n

	return n, nil
}

// openChunk reads, checks the framing of, and authenticates the next chunk.
// It returns io.EOF once every announced chunk has been consumed and nothing trails them.
func (sr *Reader) openChunk() error {
	sr.plain = sr.plain[:0]
	sr.pos = 0

	if sr.index == sr.header.Chunks() {
		var trailing [1]byte

		n, err := io.ReadFull(sr.r, trailing[:])

		switch {
		case n > 0:
			return fmt.Errorf("%w: data after final chunk", errs.ErrAuthenticationFailed)
		case errors.Is(err, io.EOF):
			return io.EOF
		default:
			return fmt.Errorf("reading ciphertext: %w", err)
		}
	}

	var prefix [chunkLenSize]byte

	if _, err := io.ReadFull(sr.r, prefix[:]); err != nil {
		return sr.readError(err)
	}

	size := binary.BigEndian.Uint32(prefix[:])
	want := chunkPlainLen(sr.header.OriginalSize, sr.index) + TagSize

	if int(size) != want {
		return fmt.Errorf("%w: chunk %d is %d bytes, expected %d", errs.ErrAuthenticationFailed, sr.index, size, want)
	}

	sr.sealed = sr.sealed[:want]

	if _, err := io.ReadFull(sr.r, sr.sealed); err != nil {
		return sr.readError(err)
	}

	nonce := ChunkNonce(sr.header.BaseNonce, uint32(sr.index)) //nolint:gosec // index < MaxChunks

	plain, err := sr.aead.Open(sr.plain[:0], nonce[:], sr.sealed, sr.ad)
	if err != nil {
		return fmt.Errorf("%w: chunk %d", errs.ErrAuthenticationFailed, sr.index)
	}

	sr.plain = plain
	sr.index++

	return nil
}

func (sr *Reader) readError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated at chunk %d", errs.ErrAuthenticationFailed, sr.index)
	}

	return fmt.Errorf("reading chunk %d: %w", sr.index, err)
}
