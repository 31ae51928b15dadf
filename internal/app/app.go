package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/duochat/internal/chat"
	"github.com/vovakirdan/duochat/internal/config"
	"github.com/vovakirdan/duochat/internal/core"
	"github.com/vovakirdan/duochat/internal/store"
	"github.com/vovakirdan/duochat/internal/store/badgerstore"
	"github.com/vovakirdan/duochat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/duochat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	conv            *core.Conversation
	store           *store.LiveStore
	log             *zerolog.Logger
}

// OpenStore opens the configured backend and wraps it in a live store.
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *zerolog.Logger) (*store.LiveStore, error) {
	var (
		backend store.Backend
		err     error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		backend, err = sqlite.New(cfg.Path, logger)
	case config.DriverBadger:
		backend, err = badgerstore.New(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s store: %w", cfg.Driver, err)
	}

	live, err := store.NewLive(ctx, backend, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	logger.Info().Str("driver", cfg.Driver).Str("path", cfg.Path).Msg("store initialized")
	return live, nil
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := OpenStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	svc := chat.New(st)
	conv := core.NewConversation(svc, logger)
	server := transporthttp.NewServer(conv, svc, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		conv:            conv,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
// The conversation loop is stopped and drained before the store is closed.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.conv.Run(loopCtx)
	}()
	stop := func() {
		stopLoop()
		<-loopDone
		a.cleanup()
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stop()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			stop()
			return err
		}

		stop()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
