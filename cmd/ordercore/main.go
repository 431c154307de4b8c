package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/phenrril/ordercore/internal/app"
	"github.com/phenrril/ordercore/internal/config"
	"github.com/phenrril/ordercore/internal/observability"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat != "json" {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:       cfg.OTel.Endpoint,
		URLPath:        cfg.OTel.URLPath,
		AuthHeader:     cfg.OTel.AuthHeader,
		Insecure:       cfg.OTel.Insecure,
		ServiceName:    "ordercore",
		ServiceVersion: version,
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to set up tracing")
	}

	var db *gorm.DB
	if cfg.Store == "postgres" {
		db, err = app.OpenDB(ctx, cfg.DB, 10)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect to database")
		}
	}

	application, err := app.NewApp(cfg, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to create app")
	}
	if err := application.MigrateAndSeed(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("failed to migrate and seed database")
	}
	go application.SweepCarts(ctx, time.Hour)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           application.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zlog.Info().Str("addr", server.Addr).Str("store", cfg.Store).Str("env", cfg.Env).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		zlog.Warn().Err(err).Msg("http shutdown")
	}
	if err := application.Close(); err != nil {
		zlog.Warn().Err(err).Msg("event publisher close")
	}
	if err := shutdownTracing(sctx); err != nil {
		zlog.Warn().Err(err).Msg("tracing shutdown")
	}
}
