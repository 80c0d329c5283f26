package encryption

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer encrypts a plaintext of known size into the chunked format.
// The header is written by NewWriter; chunks are emitted as they fill up and
// the final short chunk is emitted by Close.
type Writer struct {
	w      io.Writer
	aead   cipher.AEAD
	header Header
	ad     []byte

	buffer []byte
	sealed []byte
	index  uint64

	written uint64
	closed  bool
	err     error
}

func newWriter(w io.Writer, aead cipher.AEAD, size uint64, context []byte) (*Writer, error) {
	if ChunkCount(size) > MaxChunks {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	header, err := newHeader(size)
	if err != nil {
		return nil, err
	}

	encoded, _ := header.MarshalBinary() //nolint:errcheck // MarshalBinary never fails

	if _, err := w.Write(encoded); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	return &Writer{
		w:      w,
		aead:   aead,
		header: header,
		ad:     associatedData(header, context),
		buffer: make([]byte, 0, ChunkSize),
		sealed: make([]byte, 0, ChunkSize+TagSize),
	}, nil
}

// Header returns the header written for this stream.
func (sw *Writer) Header() Header {
	return sw.header
}

// Write implements io.Writer, buffering data until a complete chunk can be sealed.
func (sw *Writer) Write(data []byte) (int, error) {
	if sw.closed {
		return 0, ErrClosed
	}

	if sw.err != nil {
		return 0, sw.err
	}

	if sw.written+uint64(len(data)) > sw.header.OriginalSize {
		sw.err = fmt.Errorf("%w: more than %d bytes written", ErrSizeMismatch, sw.header.OriginalSize)

		return 0, sw.err
	}

	total := len(data)

	for len(data) > 0 {
		n := min(ChunkSize-len(sw.buffer), len(data))

		sw.buffer = append(sw.buffer, data[:n]...)
		data = data[n:]
		sw.written += uint64(n) //nolint:gosec // n is non-negative

		if len(sw.buffer) == ChunkSize {
			if err := sw.flushChunk(); err != nil {
				sw.err = err

				return total - len(data), err
			}
		}
	}

	return total, nil
}

// Close seals any remaining buffered data and verifies the announced size was met.
// It does not close the underlying writer.
func (sw *Writer) Close() error {
	if sw.closed {
		return nil
	}

	sw.closed = true

	if sw.err != nil {
		return sw.err
	}

	if sw.written != sw.header.OriginalSize {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrSizeMismatch, sw.written, sw.header.OriginalSize)
	}

	if len(sw.buffer) > 0 {
		return sw.flushChunk()
	}

	return nil
}

// flushChunk seals the buffered plaintext and writes it with its length prefix.
func (sw *Writer) flushChunk() error {
	nonce := ChunkNonce(sw.header.BaseNonce, uint32(sw.index)) //nolint:gosec // index < MaxChunks

	sw.sealed = sw.aead.Seal(sw.sealed[:0], nonce[:], sw.buffer, sw.ad)

	var prefix [chunkLenSize]byte

	binary.BigEndian.PutUint32(prefix[:], uint32(len(sw.sealed))) //nolint:gosec // at most ChunkSize+TagSize

	if _, err := sw.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("writing chunk size: %w", err)
	}

	if _, err := sw.w.Write(sw.sealed); err != nil {
		return fmt.Errorf("writing encrypted chunk: %w", err)
	}

	sw.buffer = sw.buffer[:0]
	sw.index++

	return nil
}
