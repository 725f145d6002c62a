// Package codec converts payload values carried by datagrams to and from bytes.
package codec

import (
	"github.com/pkg/errors"
)

// Codec encodes and decodes payload values.
type Codec interface {
	// Size returns the number of bytes Encode writes for the value.
	Size(v any) (uint64, error)

	// Encode writes the value at the beginning of buf. buf must be at least Size(v) bytes long.
	Encode(v any, buf []byte) (uint64, error)

	// Decode decodes the value stored in buf. The returned value must not reference buf.
	Decode(buf []byte) (any, error)
}

var _ Codec = Passthrough{}

// Passthrough sends byte slices and strings as they are and decodes payloads into byte slices.
type Passthrough struct{}

// Size returns the length of the value.
func (Passthrough) Size(v any) (uint64, error) {
	switch v2 := v.(type) {
	case []byte:
		return uint64(len(v2)), nil
	case string:
		return uint64(len(v2)), nil
	case nil:
		return 0, nil
	default:
		return 0, errors.Errorf("unsupported value type %T", v)
	}
}

// Encode copies the value to buf.
func (Passthrough) Encode(v any, buf []byte) (uint64, error) {
	var n int
	switch v2 := v.(type) {
	case []byte:
		n = copy(buf, v2)
		if n < len(v2) {
			return 0, errors.Errorf("buffer too small: %d < %d", len(buf), len(v2))
		}
	case string:
		n = copy(buf, v2)
		if n < len(v2) {
			return 0, errors.Errorf("buffer too small: %d < %d", len(buf), len(v2))
		}
	case nil:
	default:
		return 0, errors.Errorf("unsupported value type %T", v)
	}
	return uint64(n), nil
}

// Decode returns a copy of buf.
func (Passthrough) Decode(buf []byte) (any, error) {
	v := make([]byte, len(buf))
	copy(v, buf)
	return v, nil
}
