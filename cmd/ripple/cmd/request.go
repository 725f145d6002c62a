package cmd

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/ripple"
	"github.com/outofforest/ripple/transport"
)

var (
	requestCmd = &cobra.Command{
		Use:   "request <host:port> <message>",
		Short: "Send request and print the response",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer, err := transport.Resolve(rootFlags.Network, args[0])
			if err != nil {
				return err
			}
			return runSocket(func(ctx context.Context, s *ripple.Socket, events <-chan any) error {
				go discardEvents(events)
				return runRequest(ctx, s, peer, args[1], cmd)
			})
		},
	}
	requestFlags = struct {
		Count int
	}{}
)

func init() {
	requestCmd.Flags().IntVar(&requestFlags.Count, "count", 1, "the number of requests to send")
}

func runRequest(ctx context.Context, s *ripple.Socket, peer netip.AddrPort, message string, cmd *cobra.Command) error {
	log := logger.Get(ctx).With(zap.Stringer("peer", peer))

	for i := range requestFlags.Count {
		start := time.Now()
		resp, err := s.Call(ctx, []byte(message), peer, ripple.RequestOptions{})
		if err != nil {
			if errors.Is(err, ripple.ErrTimeout) {
				log.Warn("Request timed out", zap.Int("seq", i))
				continue
			}
			return err
		}

		log.Debug("Response received",
			zap.Uint16("tid", uint16(resp.Peer.TID)),
			zap.Duration("rtt", time.Since(start)))
		payload, _ := resp.Value.([]byte)
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(payload)); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func discardEvents(events <-chan any) {
	for range events {
	}
}
