package ripple

import (
	"net/netip"

	"github.com/outofforest/ripple/wire"
)

// ForwardRequest sends request received from one peer to another one keeping its transaction ID.
func (s *Socket) ForwardRequest(value any, from Peer, to netip.AddrPort) error {
	return s.Forward(true, value, from, to)
}

// ForwardResponse sends response received from one peer to another one keeping its transaction ID.
func (s *Socket) ForwardResponse(value any, from Peer, to netip.AddrPort) error {
	return s.Forward(false, value, from, to)
}

// Forward re-encodes the value and sends it using the transaction ID of the originating peer.
// Forwarded frames are not tracked, there are no retransmissions.
func (s *Socket) Forward(isRequest bool, value any, from Peer, to netip.AddrPort) error {
	c := s.config.ResponseCodec
	if isRequest {
		c = s.config.RequestCodec
	}

	b, err := wire.Encode(isRequest, from.TID, c, value)
	if err != nil {
		return err
	}
	return s.send(to, b)
}
