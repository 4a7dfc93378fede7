// Package serializer converts cache values to and from their stored byte form.
//
// Two formats are supported: FormatJSON, a structured text encoding that is
// portable and safe to read from any producer, and FormatMsgpack, a compact
// opaque binary encoding. Msgpack payloads decode into whatever concrete Go
// type the cache is instantiated with, so only read them from trusted
// producers that share the deployment.
//
// For V = any neither format records the Go type of a value: JSON decodes
// numbers as float64 and msgpack as sized integers, so an int stored through
// a serializing tier comes back as a different type than the in-memory copy.
// Instantiate caches with concrete types where that matters.
package serializer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thinktank/tieredcache/internal/codec"
	"github.com/thinktank/tieredcache/internal/codec/gzipcodec"
	"github.com/thinktank/tieredcache/internal/codec/noopcodec"
	"github.com/thinktank/tieredcache/internal/codec/zstdcodec"
)

// Sentinel errors for serialization failures.
var (
	// ErrEncode indicates a value could not be serialized.
	ErrEncode = errors.New("serializer: encode failed")

	// ErrDecode indicates stored bytes could not be deserialized.
	ErrDecode = errors.New("serializer: decode failed")

	// ErrUnknownFormat indicates an unsupported format name.
	ErrUnknownFormat = errors.New("serializer: unknown format")

	// ErrUnknownCompression indicates an unsupported compression name.
	ErrUnknownCompression = errors.New("serializer: unknown compression")
)

// Format identifies a serialization format.
type Format int

const (
	// FormatJSON stores values as JSON text.
	FormatJSON Format = iota
	// FormatMsgpack stores values as MessagePack binary.
	FormatMsgpack
)

// String returns the configuration name of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Extension returns the file extension for the format without dot.
func (f Format) Extension() string {
	switch f {
	case FormatMsgpack:
		return "msgpack"
	default:
		return "json"
	}
}

// ParseFormat returns the format for a configuration name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack", "binary":
		return FormatMsgpack, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Serializer encodes and decodes values of type V.
// Implementations must be safe for concurrent use.
type Serializer[V any] interface {
	// Encode returns the stored form of v.
	Encode(v V) ([]byte, error)
	// Decode parses data produced by Encode.
	Decode(data []byte) (V, error)
	// Format reports the underlying format.
	Format() Format
	// Extension returns the file extension for stored payloads without dot,
	// including any compression suffix (e.g., "json.zst").
	Extension() string
}

// New returns a serializer for format. A nil codec disables compression.
func New[V any](format Format, c codec.Codec) (Serializer[V], error) {
	var base Serializer[V]
	switch format {
	case FormatJSON:
		base = JSON[V]{}
	case FormatMsgpack:
		base = Msgpack[V]{}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
	if c == nil || c.Extension() == "" {
		return base, nil
	}
	return &compressed[V]{inner: base, codec: c}, nil
}

// MustNew is like New but panics on an unknown format.
func MustNew[V any](format Format, c codec.Codec) Serializer[V] {
	s, err := New[V](format, c)
	if err != nil {
		panic(err)
	}
	return s
}

// Compression returns the codec registered under name.
// Empty and "none" select no compression.
func Compression(name string) (codec.Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return noopcodec.New(), nil
	case "gzip", "gz":
		return gzipcodec.New(), nil
	case "zstd", "zst":
		return zstdcodec.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

// compressed wraps a serializer with a compression codec.
type compressed[V any] struct {
	inner Serializer[V]
	codec codec.Codec
}

func (s *compressed[V]) Encode(v V) ([]byte, error) {
	data, err := s.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	out, err := s.codec.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return out, nil
}

func (s *compressed[V]) Decode(data []byte) (V, error) {
	raw, err := s.codec.Decompress(data)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return s.inner.Decode(raw)
}

func (s *compressed[V]) Format() Format {
	return s.inner.Format()
}

func (s *compressed[V]) Extension() string {
	return s.inner.Extension() + "." + s.codec.Extension()
}
