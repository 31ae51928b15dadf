package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/duochat/internal/config"
	applog "github.com/vovakirdan/duochat/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "duochat:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "duochat",
		Short:         "A two-persona chat backed by a local message store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(opts),
		newSendCommand(opts),
		newHistoryCommand(opts),
		newUnreadCommand(opts),
		newReadCommand(opts),
		newAttachCommand(),
		newSmokeCommand(),
	)
	return root
}

// loadConfig resolves configuration for a subcommand. Logs go to logOut so
// one-shot commands keep stdout for their own output.
func (o *rootOptions) loadConfig(logOut io.Writer) (config.Config, *zerolog.Logger, error) {
	bootstrap := applog.NewConsole(o.logLevel, logOut)

	cfg, path, err := config.Load(bootstrap, o.configPath)
	if err != nil {
		return cfg, bootstrap, err
	}
	cfg.UpdateFrom(config.Config{LogLevel: o.logLevel})
	if err := cfg.Validate(); err != nil {
		return cfg, bootstrap, err
	}

	logger := applog.NewConsole(cfg.LogLevel, logOut)
	logger.Debug().Str("config", path).Msg("config loaded")
	return cfg, logger, nil
}
