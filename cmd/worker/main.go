package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/imrishuroy/go-product-importflow/internal/app"
	"github.com/imrishuroy/go-product-importflow/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	p := NewProcessor(a.Store, a.Reconciler, a.Poller, logger)

	// If RUN_LOCAL=true, run a single sweep against the configured snapshot and exit.
	if cfg.RunLocal {
		ev := events.CloudWatchEvent{ID: "local", Source: "importflow.local", Time: time.Now().UTC()}
		if _, err := p.Handle(context.Background(), ev); err != nil {
			logger.Error("local sweep failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
