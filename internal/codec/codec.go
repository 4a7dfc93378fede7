// Package codec provides compression for serialized cache payloads.
package codec

import "errors"

// ErrCorrupt indicates a payload could not be decompressed.
var ErrCorrupt = errors.New("codec: corrupt payload")

// Codec compresses and decompresses whole payloads.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name returns the configuration name of the codec (e.g., "zstd").
	Name() string
	// Compress returns the compressed form of data.
	Compress(data []byte) ([]byte, error)
	// Decompress reverses Compress.
	Decompress(data []byte) ([]byte, error)
	// Extension returns the file extension without dot (e.g., "zst", "gz").
	// Returns empty string for no compression.
	Extension() string
}
