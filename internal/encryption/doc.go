// Package encryption implements the chunked AES-256-GCM file format.
//
// An encrypted file is a fixed header followed by length-prefixed chunks:
//
//	version(1) ‖ base_nonce(12) ‖ original_size(8, BE) ‖ { chunk_len(4, BE) ‖ ciphertext‖tag }*
//
// Plaintext is split into 64 KiB chunks, the last one possibly shorter; an empty
// file has no chunks at all. Every chunk is sealed independently under the nonce
// ChunkNonce(base_nonce, index), so memory use stays constant regardless of file size.
// The encoded header and a caller supplied context are bound as associated data.
package encryption
