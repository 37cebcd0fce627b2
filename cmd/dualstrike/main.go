package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lcr-sec/dualstrike/internal/app"
	"github.com/lcr-sec/dualstrike/internal/config"
	"github.com/lcr-sec/dualstrike/internal/telemetry"
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				slog.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("dualstrike starting", "addr", cfg.Addr)

	if err := application.Run(ctx); err != nil {
		slog.Error("Application error", "error", err)
		cancel()
		os.Exit(1)
	}
}
