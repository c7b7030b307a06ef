// Package app wires the import flow components from a loaded config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-product-importflow/internal/aws"
	"github.com/imrishuroy/go-product-importflow/internal/config"
	"github.com/imrishuroy/go-product-importflow/internal/gateway"
	"github.com/imrishuroy/go-product-importflow/internal/handlers"
	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
	"github.com/imrishuroy/go-product-importflow/internal/snapshot"
)

// App holds the wired components of one process.
type App struct {
	Config      config.Config
	Logger      *slog.Logger
	Store       *lifecycle.Store
	Coordinator *lifecycle.Coordinator
	Reconciler  *snapshot.Reconciler
	Poller      *lifecycle.Poller
}

// NewLogger returns a text logger for local development and JSON otherwise.
func NewLogger(cfg config.Config) *slog.Logger {
	if cfg.IsLocalDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// Build constructs the store, snapshot reconciler and, when a marketplace
// token is configured, the coordinator and poller. It does not load the
// snapshot.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var clients *aws.AWSClients
	if cfg.NeedsAWS() {
		c, err := aws.NewAWSClients(ctx, aws.Settings{Region: cfg.AWS.Region, Endpoint: cfg.AWS.Endpoint})
		if err != nil {
			return nil, fmt.Errorf("init aws clients: %w", err)
		}
		clients = c
	}

	backend, err := NewBackend(cfg, clients)
	if err != nil {
		return nil, err
	}

	store := lifecycle.NewStore()
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Reconciler: snapshot.NewReconciler(store, backend, logger),
	}

	if cfg.Market.Token == "" {
		return a, nil
	}

	gw, err := gateway.New(gateway.Options{
		BaseURL: cfg.Market.BaseURL,
		Token:   cfg.Market.Token,
		Timeout: cfg.Market.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init marketplace client: %w", err)
	}

	opts := []lifecycle.Option{
		lifecycle.WithTimeout(cfg.Market.Timeout),
		lifecycle.WithLogger(logger),
	}
	if pub := clients.TransitionPublisher(cfg.AWS.TransitionsQueueURL); pub != nil {
		opts = append(opts, lifecycle.WithNotifier(pub))
	}
	a.Coordinator = lifecycle.NewCoordinator(store, gw, opts...)

	var reporter lifecycle.CountsReporter
	if m := clients.CountsReporter(cfg.AWS.MetricsNamespace); m != nil {
		reporter = m
	}
	a.Poller = lifecycle.NewPoller(a.Coordinator, cfg.Sweep.Interval, cfg.Sweep.Concurrency, reporter, logger)

	return a, nil
}

// NewBackend selects the snapshot backend named by cfg.Snapshot.Backend.
func NewBackend(cfg config.Config, clients *aws.AWSClients) (snapshot.Backend, error) {
	switch cfg.Snapshot.Backend {
	case config.BackendDynamoDB:
		if clients == nil {
			return nil, fmt.Errorf("dynamodb snapshot backend requires aws clients")
		}
		return snapshot.NewDynamoBackend(clients.DynamoDB, cfg.Snapshot.Table), nil
	case config.BackendS3:
		b, err := snapshot.NewObjectBackend(snapshot.ObjectOptions{
			Endpoint:  cfg.Snapshot.S3.Endpoint,
			AccessKey: cfg.Snapshot.S3.AccessKey,
			SecretKey: cfg.Snapshot.S3.SecretKey,
			UseSSL:    cfg.Snapshot.S3.UseSSL,
			Region:    cfg.Snapshot.S3.Region,
			Bucket:    cfg.Snapshot.Bucket,
			Object:    cfg.Snapshot.Object,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendFile, "":
		return snapshot.NewFileBackend(cfg.Snapshot.Path), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}
}

// Router returns the HTTP engine. It requires a coordinator.
func (a *App) Router() (*gin.Engine, error) {
	if a.Coordinator == nil {
		return nil, fmt.Errorf("marketplace token is not configured")
	}
	return handlers.NewRouter(handlers.HandlerConfig{
		Coordinator:      a.Coordinator,
		SweepConcurrency: a.Config.Sweep.Concurrency,
		Logger:           a.Logger,
	}), nil
}
