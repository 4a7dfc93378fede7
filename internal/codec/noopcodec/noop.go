// Package noopcodec provides a no-op codec (no compression).
package noopcodec

import "github.com/thinktank/tieredcache/internal/codec"

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements no compression.
type Codec struct{}

// New returns a new no-op codec.
func New() *Codec {
	return &Codec{}
}

// Name returns "none".
func (c *Codec) Name() string {
	return "none"
}

// Compress returns data unchanged.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data unchanged.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

// Extension returns empty string.
func (c *Codec) Extension() string {
	return ""
}
