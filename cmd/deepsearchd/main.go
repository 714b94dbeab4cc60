// Command deepsearchd runs the deep search HTTP service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openagents/deepsearch"
	"github.com/openagents/deepsearch/config"
	"github.com/openagents/deepsearch/logging"
	"github.com/openagents/deepsearch/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr      string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:           "deepsearchd",
		Short:         "HTTP service routing queries to deep search and tool-calling agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides DEEPSEARCH_ADDR)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "log format: json or text")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stdout,
	})

	svc, err := deepsearch.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Error("service initialization failed", "error", err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(svc, cfg, func(o *server.Options) {
		o.Logger = logger.WithComponent("server")
	})
	return srv.ListenAndServe(ctx)
}
