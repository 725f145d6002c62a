package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/ripple"
)

var (
	// Root is the root command of the ripple CLI.
	Root = &cobra.Command{
		Use:          "ripple",
		Short:        "Request/response over UDP datagrams",
		SilenceUsage: true,
	}
	rootFlags = struct {
		Port    uint16
		Network string
		Timeout time.Duration
		Retry   bool
	}{}
)

func init() {
	Root.PersistentFlags().Uint16Var(&rootFlags.Port, "port", 0, "the UDP port to listen on, 0 selects an ephemeral one")
	Root.PersistentFlags().StringVar(&rootFlags.Network, "network", ripple.DefaultNetwork, "the network to bind, udp4 or udp6")
	Root.PersistentFlags().DurationVar(&rootFlags.Timeout, "timeout", ripple.DefaultTimeout, "the base request timeout")
	Root.PersistentFlags().BoolVar(&rootFlags.Retry, "retry", false, "retransmit requests until they time out")

	Root.AddCommand(echoCmd, requestCmd, relayCmd)
}

type appFunc func(ctx context.Context, s *ripple.Socket, events <-chan any) error

// runSocket binds the socket and runs it together with the app until either of them exits or
// the process is interrupted.
func runSocket(app appFunc) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logger.New(logger.DefaultConfig)
	defer func() {
		_ = log.Sync()
	}()
	ctx = logger.WithLogger(ctx, log)

	s, events, err := ripple.New(ripple.Config{
		Network: rootFlags.Network,
		Timeout: rootFlags.Timeout,
		Retry:   rootFlags.Retry,
	})
	if err != nil {
		return err
	}
	if err := s.Listen(ctx, rootFlags.Port); err != nil {
		return err
	}

	log.Info("Socket started", zap.Stringer("addr", s.Addr()))

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("socket", parallel.Fail, s.Run)
		spawn("app", parallel.Exit, func(ctx context.Context) error {
			return app(ctx, s, events)
		})
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Application failed", zap.Error(err))
		return err
	}

	log.Info("Bye!")
	return nil
}
