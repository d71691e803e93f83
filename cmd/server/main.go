package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"dinebot/app/internal/app/bootstrap"
	"dinebot/app/internal/config"
	applog "dinebot/app/internal/log"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "dinebot: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "creating logger")
	}

	hub, flushSentry, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		ServerName:  "dinebot-server",
	})
	if err != nil {
		return eris.Wrap(err, "initialising sentry")
	}
	defer flushSentry()

	app, err := bootstrap.Build(ctx, bootstrap.Dependencies{
		Config:    *cfg,
		Logger:    logger,
		SentryHub: hub,
	})
	if err != nil {
		return eris.Wrap(err, "building dinebot")
	}
	defer func() {
		if err := app.Cleanup(); err != nil {
			logger.WithError(err).WithField("memory_backend", cfg.Memory.Backend).Error("closing memory store")
		}
	}()

	srv := &stdhttp.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           app.HTTPServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.WithFields(logrus.Fields{
		"addr":           srv.Addr,
		"environment":    cfg.Environment,
		"memory_backend": cfg.Memory.Backend,
		"models":         cfg.LLMModels,
	}).Info("dinebot listening")

	return serve(ctx, srv, logger, cfg.ShutdownGrace)
}

// serve runs srv until it fails or ctx is cancelled, then shuts it down within grace.
func serve(ctx context.Context, srv *stdhttp.Server, logger *logrus.Logger, grace time.Duration) error {
	listenErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			listenErr <- err
			return
		}
		listenErr <- nil
	}()

	select {
	case err := <-listenErr:
		return eris.Wrap(err, "serving http")
	case <-ctx.Done():
	}

	logger.WithField("grace", grace.String()).Info("dinebot shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	logger.Info("dinebot stopped")
	return nil
}
