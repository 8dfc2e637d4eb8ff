package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/showfolio/chat/internal/api"
	"github.com/showfolio/chat/internal/config"
	"github.com/showfolio/chat/internal/realtime"
	"github.com/showfolio/chat/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the data store: PostgreSQL when configured, SQLite otherwise
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		path := cfg.SQLitePath
		if path == "" {
			path = "showchat.db"
		}
		sqlStore, err := store.NewSQLiteStore(ctx, path)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqlStore
		logger.Info().Str("path", path).Msg("using SQLite store")
	}
	defer dataStore.Close()

	// Realtime hub plus optional redis bus for multi-instance fanout
	hub := realtime.NewHub(logger)
	defer hub.Close()

	var bus realtime.Bus
	if cfg.RedisURL != "" {
		var err error
		bus, err = realtime.NewRedisBus(logger, cfg.RedisURL, cfg.BusChannel)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer bus.Close()

		if err := bus.StartForwarder(ctx, hub.Deliver); err != nil {
			logger.Fatal().Err(err).Msg("event forwarder failed to start")
		}
		logger.Info().Msg("connected to Redis event bus")
	}

	publisher := realtime.NewPublisher(bus, hub)

	// Create router
	router := api.NewRouter(logger, dataStore, publisher, hub, realtime.RedisClient(bus))

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting showfolio chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
