package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luciancaetano/rtsock/internal/mockserver"
)

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local mock realtime server",
		Long: `Run an in-process realtime server for local development.

The server accepts any token, using it as both user id and username. The
RPC ids listed under serve.rpcs echo their payload back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Serve.Addr = addr
			}

			srv := mockserver.New(&mockserver.Config{
				Addr:      a.cfg.Serve.Addr,
				RateLimit: a.cfg.RateLimiter(),
				Logger:    a.logger,
				OnConnect: func(sess *mockserver.Session) {
					a.logger.Info("session opened", zap.String("user_id", sess.UserID()), zap.String("remote_addr", sess.RemoteAddr()))
				},
				OnDisconnect: func(sess *mockserver.Session, voluntary bool) {
					a.logger.Info("session closed", zap.String("user_id", sess.UserID()), zap.Bool("voluntary", voluntary))
				},
			})
			for _, id := range a.cfg.Serve.RPCs {
				srv.RegisterRPC(id, echo)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			a.logger.Info("shutting down")
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(stopCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default serve.addr)")
	return cmd
}

func echo(ctx context.Context, sess *mockserver.Session, payload string) (string, error) {
	return payload, nil
}
