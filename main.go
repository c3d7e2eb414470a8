package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kilowulf/livdoc/internal/app"
	"github.com/kilowulf/livdoc/internal/config"
	"github.com/kilowulf/livdoc/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	a, err := app.New(cfg, deps.DB, deps.Weaviate, deps.NSQProducer, deps.Redis, deps.Genai)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	if cfg.EnableIngestWorker {
		go func() {
			if err := a.RunConsumer(ctx); err != nil {
				slog.Error("ingest consumer failed", "error", err)
				stop()
			}
		}()
		slog.Info("ingest consumer enabled")
	}

	if cfg.EnableAPI {
		if err := a.Run(ctx); err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Worker-only process.
	<-ctx.Done()
}
