package codec

import (
	"github.com/pkg/errors"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
)

var _ Codec = Proton{}

// NewProton returns codec encoding messages with proton marshaller.
func NewProton(m proton.Marshaller) Proton {
	return Proton{m: m}
}

// Proton encodes messages known to proton marshaller. Each payload starts with the message ID
// so the receiver knows which message to unmarshal.
type Proton struct {
	m proton.Marshaller
}

// Size computes the size of encoded message.
func (c Proton) Size(v any) (uint64, error) {
	id, err := c.m.ID(v)
	if err != nil {
		return 0, err
	}
	size, err := c.m.Size(v)
	if err != nil {
		return 0, err
	}

	var n uint64 = 1
	helpers.UInt64Size(id, &n)
	return n + size, nil
}

// Encode marshals message into buf.
func (c Proton) Encode(v any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	id, err := c.m.ID(v)
	if err != nil {
		return 0, err
	}

	var o uint64
	helpers.UInt64Marshal(id, buf, &o)

	_, size, err := c.m.Marshal(v, buf[o:])
	if err != nil {
		return 0, err
	}
	return o + size, nil
}

// Decode unmarshals message from buf.
func (c Proton) Decode(buf []byte) (retMsg any, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	if len(buf) == 0 {
		return nil, errors.New("empty payload")
	}

	var id, o uint64
	helpers.UInt64Unmarshal(&id, buf, &o)

	msg, size, err := c.m.Unmarshal(id, buf[o:])
	if err != nil {
		return nil, err
	}
	if o+size != uint64(len(buf)) {
		return nil, errors.Errorf("unexpected payload size, expected: %d, got: %d", len(buf), o+size)
	}
	return msg, nil
}
