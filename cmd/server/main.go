package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Brownie44l1/imagenet-api/internal/classifier"
	"github.com/Brownie44l1/imagenet-api/internal/config"
	"github.com/Brownie44l1/imagenet-api/internal/handlers"
	"github.com/Brownie44l1/imagenet-api/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML/JSON config file")
	flag.Parse()

	// If running from cmd/server, go up two levels so relative model paths resolve
	if wd, err := os.Getwd(); err == nil && filepath.Base(wd) == "server" {
		os.Chdir(filepath.Join(wd, "../.."))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := logging.Must("info", "console")
		fallback.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logging.Must(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("model", cfg.Model.Path).Str("labels", cfg.Model.Labels).Msg("Loading model")

	clf, err := classifier.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize classifier")
	}
	defer clf.Close()

	handler := handlers.NewHandler(clf, handlers.Options{
		SamplePath:     cfg.Sample.Path,
		FetchTimeout:   cfg.Fetch.Timeout,
		MaxUploadBytes: cfg.Fetch.MaxBytes,
		AllowPrivate:   cfg.Fetch.AllowPrivate,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", cfg.Server.Port).Msg("Server starting")
	log.Info().Msg("Endpoints:")
	log.Info().Msg("  GET  /health         - Health check")
	log.Info().Msg("  POST /predict        - Raw tensor prediction")
	log.Info().Msg("  POST /predict/image  - Predict from image upload")
	log.Info().Msg("  POST /predict/url    - Predict from image URL")
	log.Info().Msg("  GET  /predict/sample - Predict the bundled sample image")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			clf.Close()
			log.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}
}
