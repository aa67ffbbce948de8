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
	"github.com/rs/zerolog/log"

	"github.com/shopqueue/shop-queue/internal/api"
	"github.com/shopqueue/shop-queue/internal/automigrate"
	"github.com/shopqueue/shop-queue/internal/config"
	"github.com/shopqueue/shop-queue/internal/engine"
	"github.com/shopqueue/shop-queue/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogging(cfg)

	db, err := store.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	if cfg.AutoMigrate {
		if err := automigrate.Run(db, cfg.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
	}

	router := api.NewRouter(db, engine.WithPageSizes(cfg.Engine.QueuePageSize, cfg.Engine.EmployeePageSize))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("environment", cfg.Environment).
			Msg("shop queue server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown did not finish cleanly")
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
