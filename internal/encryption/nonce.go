package encryption

import "encoding/binary"

// ChunkNonce derives the nonce of chunk index from the file's base nonce.
// The last four bytes of base are XORed with the big-endian index, so every chunk
// of a file gets a distinct nonce without storing one per chunk.
func ChunkNonce(base [NonceSize]byte, index uint32) [NonceSize]byte {
	nonce := base

	const counterOffset = NonceSize - 4

	counter := binary.BigEndian.Uint32(nonce[counterOffset:]) ^ index
	binary.BigEndian.PutUint32(nonce[counterOffset:], counter)

	return nonce
}
