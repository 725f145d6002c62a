package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/outofforest/ripple/codec"
)

// ErrMalformedFrame is returned when datagram can't be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// EncodeRequest builds request frame.
func EncodeRequest(tid TID, payload []byte) []byte {
	return frame(true, tid, payload)
}

// EncodeResponse builds response frame.
func EncodeResponse(tid TID, payload []byte) []byte {
	return frame(false, tid, payload)
}

// Encode builds frame carrying value encoded by the codec.
func Encode(isRequest bool, tid TID, c codec.Codec, value any) ([]byte, error) {
	size, err := c.Size(value)
	if err != nil {
		return nil, errors.Wrap(err, "computing payload size failed")
	}

	b := make([]byte, HeaderSize+size)
	PutHeader(b, isRequest, tid)

	n, err := c.Encode(value, b[HeaderSize:])
	if err != nil {
		return nil, errors.Wrap(err, "encoding payload failed")
	}
	return b[:HeaderSize+n], nil
}

// Parse decodes frame header. Returned payload references b.
func Parse(b []byte) (Header, []byte, error) {
	if len(b) < HeaderSize {
		return Header{}, nil, errors.Wrapf(ErrMalformedFrame, "frame too short: %d bytes", len(b))
	}

	h := binary.BigEndian.Uint16(b)
	return Header{
		TID:       TID(h) & MaxTID,
		IsRequest: h&requestFlag != 0,
	}, b[HeaderSize:], nil
}

// Decode parses frame and decodes its payload using the codec.
func Decode(b []byte, requestCodec, responseCodec codec.Codec) (Header, any, error) {
	h, payload, err := Parse(b)
	if err != nil {
		return Header{}, nil, err
	}

	c := responseCodec
	if h.IsRequest {
		c = requestCodec
	}

	v, err := c.Decode(payload)
	if err != nil {
		return Header{}, nil, errors.Wrapf(ErrMalformedFrame, "decoding payload of tid %d failed: %s", h.TID, err)
	}
	return h, v, nil
}

func frame(isRequest bool, tid TID, payload []byte) []byte {
	b := make([]byte, HeaderSize+len(payload))
	PutHeader(b, isRequest, tid)
	copy(b[HeaderSize:], payload)
	return b
}

// PutHeader writes frame header to the beginning of b.
func PutHeader(b []byte, isRequest bool, tid TID) {
	h := uint16(tid & MaxTID)
	if isRequest {
		h |= requestFlag
	}
	binary.BigEndian.PutUint16(b, h)
}
