package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luciancaetano/rtsock/internal/config"
	"github.com/luciancaetano/rtsock/internal/observability"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries the loaded configuration and logger to every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger

	// Flag overrides applied on top of the loaded configuration.
	host  string
	port  int
	token string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "rtsock",
		Short: "Realtime socket client and mock server",
		Long: `rtsock talks to a realtime game server over a multiplexed WebSocket.

Use it to chat in rooms, call RPC functions, or run a local mock server
that speaks the same envelope protocol.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: ./rtsock.yaml, ./configs, ~/.rtsock)")
	flags.StringVar(&a.host, "host", "", "server host")
	flags.IntVar(&a.port, "port", 0, "server port")
	flags.StringVarP(&a.token, "token", "t", "", "session token")

	rootCmd.AddCommand(
		chatCmd(a),
		rpcCmd(a),
		serveCmd(a),
		versionCmd(),
	)
	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = a.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = a.port
	}
	if flags.Changed("token") {
		cfg.Session.Token = a.token
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
