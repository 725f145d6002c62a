package ripple

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/ripple/codec"
	"github.com/outofforest/ripple/wire"
)

// Default configuration values.
const (
	DefaultNetwork         = "udp4"
	DefaultTimeout         = time.Second
	DefaultInitialTicks    = 5
	DefaultMaxDatagramSize = 65535
	DefaultEventBuffer     = 64
)

// DefaultBackoff is the number of ticks to wait after each retransmission.
var DefaultBackoff = []uint32{4, 8, 12}

// Config is the configuration of socket.
type Config struct {
	// Conn is the socket bound by the caller. Socket never closes it.
	Conn *net.UDPConn

	// Network is used to bind new socket if Conn is not set.
	Network string

	// Retry enables retransmissions of requests, it might be overridden per request.
	Retry bool

	// Timeout is the base timeout. It defines the default TickInterval.
	Timeout time.Duration

	// TickInterval is the period of the scheduler checking pending requests.
	TickInterval time.Duration

	// InitialTicks is the number of ticks to wait for response before first retransmission.
	InitialTicks uint32

	// Backoff is the number of ticks to wait for response after each retransmission.
	// Its length is the maximum number of retransmissions.
	Backoff []uint32

	// Codec is used for requests and responses if specific ones are not set.
	Codec codec.Codec

	// RequestCodec encodes and decodes requests.
	RequestCodec codec.Codec

	// ResponseCodec encodes and decodes responses.
	ResponseCodec codec.Codec

	// MaxDatagramSize is the size of the receive buffer.
	MaxDatagramSize uint64

	// EventBuffer is the capacity of the event channel.
	EventBuffer int
}

func (c Config) withDefaults() (Config, error) {
	if c.Network == "" {
		c.Network = DefaultNetwork
	}
	if c.Timeout < 0 || c.TickInterval < 0 {
		return Config{}, errors.Errorf("negative timeout: %s, tick interval: %s", c.Timeout, c.TickInterval)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TickInterval == 0 {
		c.TickInterval = c.Timeout / 4
		if c.TickInterval < time.Millisecond {
			c.TickInterval = time.Millisecond
		}
	}
	if c.InitialTicks == 0 {
		c.InitialTicks = DefaultInitialTicks
	}
	if c.Backoff == nil {
		c.Backoff = DefaultBackoff
	}
	if c.Codec == nil {
		c.Codec = codec.Passthrough{}
	}
	if c.RequestCodec == nil {
		c.RequestCodec = c.Codec
	}
	if c.ResponseCodec == nil {
		c.ResponseCodec = c.Codec
	}
	if c.MaxDatagramSize == 0 {
		c.MaxDatagramSize = DefaultMaxDatagramSize
	}
	if c.MaxDatagramSize < wire.HeaderSize {
		return Config{}, errors.Errorf("max datagram size %d is smaller than header", c.MaxDatagramSize)
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	return c, nil
}
