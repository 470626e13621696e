package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/salesingest/internal/config"
	"github.com/JonMunkholm/salesingest/internal/core"
	"github.com/JonMunkholm/salesingest/internal/logging"
	"github.com/JonMunkholm/salesingest/internal/metrics"
	"github.com/JonMunkholm/salesingest/internal/store"
	"github.com/JonMunkholm/salesingest/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.ResolvedDriver(),
		"upload_max_file_size", cfg.Upload.MaxFileSize,
		"serialize_replace", cfg.Ingest.SerializeReplace,
		"metrics_enabled", cfg.Metrics.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	opts := core.Options{
		Logger:           logger,
		MaxFileSize:      cfg.Upload.MaxFileSize,
		SerializeReplace: cfg.Ingest.SerializeReplace,
	}
	if m != nil {
		opts.Metrics = m
	}
	service := core.NewService(st, opts)

	slog.Info("record types registered", "types", core.RecordTypes)

	server := web.NewServer(service, st, m, cfg)

	// Graceful shutdown
	idle := make(chan struct{})
	go func() {
		defer close(idle)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Handlers that outlived Shutdown may still hold replace locks.
		if err := service.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("replacements did not complete in time", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		st.Close()
		os.Exit(1)
	}
	<-idle
	slog.Info("server stopped")
}
