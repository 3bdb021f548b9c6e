package wire

import "github.com/pkg/errors"

// Codec converts application values to and from opaque payload bytes. The
// framing layer never inspects the payload; what the bytes mean is entirely
// the codec's business.
//
// Decode must be pure: it reconstructs declared data and nothing else, and
// it must reject truncated input, trailing bytes, and unknown encodings
// rather than guessing. Encode fails only for values outside the codec's
// accepted types or bounds, which is a caller defect rather than a
// transport condition.
type Codec interface {
	// Encode serializes one application value into payload bytes.
	Encode(v any) ([]byte, error)
	// Decode reconstructs one application value from payload bytes.
	Decode(p []byte) (any, error)
}

// ErrUnsupportedValue is returned by Encode when handed a value of a type
// the codec does not accept.
var ErrUnsupportedValue = errors.New("wire: codec cannot encode value")

// RawCodec passes byte slices through unchanged. It suits applications that
// do their own serialization and only want framing, and it keeps the wire
// image trivially inspectable: the payload is the value.
type RawCodec struct{}

// Encode accepts []byte or string values and returns their bytes verbatim.
func (RawCodec) Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedValue, "raw codec: %T", v)
	}
}

// Decode returns the payload bytes unchanged.
func (RawCodec) Decode(p []byte) (any, error) {
	return p, nil
}
