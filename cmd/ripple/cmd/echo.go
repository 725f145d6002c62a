package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/ripple"
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Respond to every request with its own payload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSocket(runEcho)
	},
}

func runEcho(ctx context.Context, s *ripple.Socket, events <-chan any) error {
	log := logger.Get(ctx)
	for event := range events {
		switch e := event.(type) {
		case ripple.InboundRequest:
			log.Debug("Request received", zap.Stringer("peer", e.Peer), zap.Uint16("tid", uint16(e.Peer.TID)))
			if err := s.Response(e.Value, e.Peer); err != nil {
				log.Warn("Sending response failed", zap.Stringer("peer", e.Peer), zap.Error(err))
			}
		case ripple.FatalError:
			return e.Err
		}
	}
	return nil
}
