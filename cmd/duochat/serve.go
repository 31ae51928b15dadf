package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/duochat/internal/app"
	"github.com/vovakirdan/duochat/internal/config"
	applog "github.com/vovakirdan/duochat/internal/log"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var overrides config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.loadConfig(os.Stdout)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)

			if cfg.LogFile != "" {
				var closer io.Closer
				logger, closer, err = applog.NewWithFile(cfg.LogLevel, cfg.LogFile)
				if err != nil {
					return err
				}
				defer closer.Close()
			}

			application, err := app.New(cmd.Context(), &cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Str("driver", cfg.Storage.Driver).Msg("starting duochat")
			if err := application.Run(cmd.Context()); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	cmd.Flags().DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	cmd.Flags().StringVar(&overrides.LogFile, "log-file", "", "also write logs to this rotated file")
	cmd.Flags().StringVar(&overrides.Storage.Driver, "driver", "", "storage driver (sqlite, badger)")
	cmd.Flags().StringVar(&overrides.Storage.Path, "db", "", "storage path")
	return cmd
}
