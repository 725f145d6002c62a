package cmd

import (
	"context"
	"net/netip"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/ripple"
	"github.com/outofforest/ripple/transport"
	"github.com/outofforest/ripple/wire"
)

var relayCmd = &cobra.Command{
	Use:   "relay <host:port>",
	Short: "Forward requests to the target and its responses back to the requesters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := transport.Resolve(rootFlags.Network, args[0])
		if err != nil {
			return err
		}
		return runSocket(func(ctx context.Context, s *ripple.Socket, events <-chan any) error {
			return runRelay(ctx, s, events, target)
		})
	},
}

func runRelay(ctx context.Context, s *ripple.Socket, events <-chan any, target netip.AddrPort) error {
	log := logger.Get(ctx).With(zap.Stringer("target", target))

	// Relay doesn't track forwarded requests, so origin of the response is the last requester
	// which used the transaction ID.
	origins := map[wire.TID]netip.AddrPort{}
	for event := range events {
		switch e := event.(type) {
		case ripple.InboundRequest:
			origins[e.Peer.TID] = e.Peer.Addr
			if err := s.ForwardRequest(e.Value, e.Peer, target); err != nil {
				log.Warn("Forwarding request failed", zap.Stringer("peer", e.Peer), zap.Error(err))
			}
		case ripple.InboundResponse:
			if e.Request != nil {
				continue
			}
			origin, exists := origins[e.Peer.TID]
			if !exists {
				log.Debug("Dropping response of unknown origin", zap.Uint16("tid", uint16(e.Peer.TID)))
				continue
			}
			delete(origins, e.Peer.TID)
			if err := s.ForwardResponse(e.Value, e.Peer, origin); err != nil {
				log.Warn("Forwarding response failed", zap.Stringer("origin", origin), zap.Error(err))
			}
		case ripple.FatalError:
			return e.Err
		}
	}
	return nil
}
