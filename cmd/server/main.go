package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ayursetu/setu/internal/adapter/driven/assets/manifest"
	"github.com/ayursetu/setu/internal/adapter/driven/peer/inproc"
	"github.com/ayursetu/setu/internal/adapter/driven/persistence/sqlite"
	handler "github.com/ayursetu/setu/internal/adapter/driving/http"
	"github.com/ayursetu/setu/internal/config"
	"github.com/ayursetu/setu/internal/core/service"
	"github.com/ayursetu/setu/internal/metrics"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()

	if err := godotenv.Load(); err != nil {
		l.Info().Msg("No .env file found, relying on environment variables")
	}
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		l.Fatal().Msg("JWT_SECRET is not set")
	}

	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	m := metrics.New()
	network := inproc.NewNetwork()
	directory := service.NewDirectory(store, l)
	herbs := service.NewHerbs()

	composer := service.NewComposer(manifest.NewLoader(cfg.AssetDir), l)
	composer.OnLoadFailure = m.AssetLoadFailures.Inc
	composer.Compose(context.Background(), service.AnatomyLayout)
	go composer.Run()

	hub := handler.NewHub(network, store, m, l)
	go hub.Run()

	h := handler.NewHandler(cfg, directory, herbs, composer, hub, m, l)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.HTTPAddr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	composer.Stop()
	l.Info().Msg("Server exited")
}
