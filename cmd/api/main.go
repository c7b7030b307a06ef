package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	if _, err := a.Reconciler.Load(ctx); err != nil {
		logger.Error("load snapshot", "error", err)
		os.Exit(1)
	}

	r, err := a.Router()
	if err != nil {
		logger.Error("build router", "error", err)
		os.Exit(1)
	}

	// if RUN_LOCAL is set, serve HTTP directly with the background poller and snapshot loop.
	if cfg.RunLocal {
		a.Poller.Start(ctx)
		saved := make(chan struct{})
		go func() {
			defer close(saved)
			a.Reconciler.Run(ctx, cfg.Snapshot.Interval)
		}()

		srv := &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("running local server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("local server failed", "error", err)
				stop()
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
		<-saved
		return
	}

	// Lambda invocations are short lived; persist after every request.
	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		resp, err := adapter.ProxyWithContext(ctx, req)
		if _, serr := a.Reconciler.Save(ctx); serr != nil {
			logger.Warn("save snapshot", "error", serr)
		}
		return resp, err
	})
}
