package serializer

import (
	"encoding/json"
	"fmt"
)

// Compile-time check that JSON implements Serializer.
var _ Serializer[any] = JSON[any]{}

// JSON serializes values with encoding/json.
type JSON[V any] struct{}

// Encode marshals v as JSON.
func (JSON[V]) Encode(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return data, nil
}

// Decode unmarshals JSON into a V.
func (JSON[V]) Decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		var zero V
		return zero, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}

// Format returns FormatJSON.
func (JSON[V]) Format() Format { return FormatJSON }

// Extension returns "json".
func (JSON[V]) Extension() string { return FormatJSON.Extension() }
