package serializer

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Compile-time check that Msgpack implements Serializer.
var _ Serializer[any] = Msgpack[any]{}

// Msgpack serializes values with MessagePack.
type Msgpack[V any] struct{}

// Encode marshals v as MessagePack.
func (Msgpack[V]) Encode(v V) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return data, nil
}

// Decode unmarshals MessagePack into a V.
func (Msgpack[V]) Decode(data []byte) (V, error) {
	var v V
	if err := msgpack.Unmarshal(data, &v); err != nil {
		var zero V
		return zero, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}

// Format returns FormatMsgpack.
func (Msgpack[V]) Format() Format { return FormatMsgpack }

// Extension returns "msgpack".
func (Msgpack[V]) Extension() string { return FormatMsgpack.Extension() }
