package encryption

import (
	"sync"
)

// bufferPool provides reusable ChunkSize copy buffers for Encrypt and Decrypt.
//
//nolint:gochecknoglobals
var bufferPool = sync.Pool{
	New: func() any {
		return make([]byte, ChunkSize)
	},
}
