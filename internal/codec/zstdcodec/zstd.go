// Package zstdcodec provides a zstd compression codec.
package zstdcodec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/thinktank/tieredcache/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements zstd compression.
// The encoder and decoder are shared; EncodeAll and DecodeAll are safe for
// concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New returns a new zstd codec.
func New() *Codec {
	// Both constructors only fail on invalid options.
	encoder, _ := zstd.NewWriter(nil)
	decoder, _ := zstd.NewReader(nil)
	return &Codec{encoder: encoder, decoder: decoder}
}

// Name returns "zstd".
func (c *Codec) Name() string {
	return "zstd"
}

// Compress compresses data with zstd.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress decompresses zstd data.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrCorrupt, err)
	}
	return out, nil
}

// Extension returns "zst".
func (c *Codec) Extension() string {
	return "zst"
}
