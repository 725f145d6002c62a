package ripple

import "net/netip"

// InboundRequest is emitted when request is received.
type InboundRequest struct {
	Value any
	Peer  Peer
}

// InboundResponse is emitted when response is received. Request is nil if response doesn't
// match any pending request.
type InboundResponse struct {
	Value   any
	Peer    Peer
	Request any
}

// Warning is emitted on malformed frames and recoverable transport errors.
type Warning struct {
	Err error
}

// FatalError is emitted when socket can't be bound or is not permitted to send.
type FatalError struct {
	Err error
}

// Ready is emitted when socket is ready to send and receive.
type Ready struct {
	Addr netip.AddrPort
}

// Closed is emitted when socket is destroyed.
type Closed struct{}
