package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatcore/internal/config"
	"github.com/vovakirdan/chatcore/internal/core"
	"github.com/vovakirdan/chatcore/internal/relay"
	"github.com/vovakirdan/chatcore/internal/store"
	"github.com/vovakirdan/chatcore/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/chatcore/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	publisher       *relay.Publisher
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	opts := core.Options{PersistTimeout: cfg.PersistTimeout}

	var publisher *relay.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = relay.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init relay: %w", err)
		}
		opts.Relay = publisher
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("event relay enabled")
	}

	hub := core.NewHub(st, logger, opts)
	server := transporthttp.NewServer(hub, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		publisher:       publisher,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		<-hubDone
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		shutdownErr := a.server.Shutdown(shutdownCtx)

		// Websocket connections are hijacked, so Shutdown does not wait for them.
		// Stopping the hub runs the disconnect cleanup for every live client.
		stopHub()
		<-hubDone
		a.cleanup()

		if shutdownErr != nil {
			return shutdownErr
		}
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close relay")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
