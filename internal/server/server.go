// Package server wires the datastore, storage, AI, chain and event
// components together and runs the HTTP API.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/africaresearchbase/arb/internal/ai"
	api "github.com/africaresearchbase/arb/internal/api/v2"
	"github.com/africaresearchbase/arb/internal/chain"
	"github.com/africaresearchbase/arb/internal/conf"
	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/events"
	"github.com/africaresearchbase/arb/internal/logging"
	"github.com/africaresearchbase/arb/internal/objectstore"
	"github.com/africaresearchbase/arb/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Run starts the API server and blocks until it is shut down.
func Run(settings *conf.Settings) error {
	logging.Init(settings.Debug)
	logger := logging.ForService("server")

	store := datastore.New(settings)
	if store == nil {
		return errors.New("no database backend enabled, enable output.sqlite or output.mysql")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	opts, cleanup, err := buildComponents(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	controller, err := api.New(e, store, settings, log.Default(), metrics, opts...)
	if err != nil {
		return err
	}
	defer controller.Shutdown()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "listen", settings.WebServer.Listen)
		if err := e.Start(settings.WebServer.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(ctx)
}

// buildComponents constructs the optional service clients and returns
// the controller options plus a cleanup function. A failed optional
// component logs a warning and leaves its feature disabled; only the
// object store is required.
func buildComponents(settings *conf.Settings) (opts []api.Option, cleanup func(), err error) {
	logger := logging.ForService("server")
	cleanup = func() {}

	fileStore, err := objectstore.New(&settings.ObjectStore, logging.ForService("objectstore"))
	if err != nil {
		return nil, cleanup, err
	}
	opts = append(opts, api.WithObjectStore(fileStore))

	if settings.AI.Enabled {
		provider := ai.NewAnthropicClient(&settings.AI)
		analyzer := ai.NewAnalyzer(provider, logging.ForService("ai"))
		opts = append(opts, api.WithAnalyzer(analyzer))
		logger.Info("AI analysis enabled", "model", settings.AI.Model)
	} else {
		logger.Info("AI analysis disabled, heuristic scoring only")
	}

	if settings.Chain.Enabled {
		registrar, err := chain.New(&settings.Chain)
		if err != nil {
			logger.Warn("chain client unavailable, on-chain registration disabled", "error", err)
		} else {
			opts = append(opts, api.WithChainRegistrar(registrar))
			logger.Info("on-chain registration enabled", "program", settings.Chain.ProgramID)
		}
	}

	if settings.Events.Enabled {
		publisher, err := events.NewPublisher(&settings.Events, logging.ForService("events"))
		if err != nil {
			logger.Warn("event publisher unavailable, lifecycle events disabled", "error", err)
		} else {
			opts = append(opts, api.WithEventPublisher(publisher))
			cleanup = func() {
				if err := publisher.Close(); err != nil {
					logger.Error("failed to close event publisher", "error", err)
				}
			}
		}
	}

	return opts, cleanup, nil
}
