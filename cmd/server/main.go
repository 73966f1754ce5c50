package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/stwalsh4118/cadence/internal/config"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", true)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	logger.Log.Info().Msg("Cadence sequencing service starting")

	database, err := db.New(cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to get database handle")
	}
	if err := db.RunMigrations(sqlDB); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	srv, err := server.New(cfg, database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create server")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Log.Error().Err(err).Msg("Server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Shutdown error")
	}
}
