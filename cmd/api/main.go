package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atelier-goods/api/internal/di"
	"github.com/atelier-goods/api/internal/handlers"
	"github.com/atelier-goods/api/internal/platform/config"
	"github.com/atelier-goods/api/internal/platform/observability"
	"github.com/atelier-goods/api/internal/repositories/gormrepo"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	loadOpts := []config.Option{}
	if path := os.Getenv("API_CONFIG_FILE"); path != "" {
		loadOpts = append(loadOpts, config.WithYAMLFile(path))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	registry, err := gormrepo.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, registry, logger)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	readiness := map[string]handlers.ReadinessCheck{
		"database": func(ctx context.Context) error {
			_, err := container.Repositories.StockLocations().ListActive(ctx)
			return err
		},
	}
	if redis := container.Redis(); redis != nil {
		readiness["redis"] = func(ctx context.Context) error {
			return redis.Ping(ctx).Err()
		}
	}

	orderHandlers := handlers.NewOrderHandlers(container.Services.Orders,
		handlers.WithCreateThrottle(cfg.Server.CreateOrderLimit, cfg.Server.CreateOrderWindow))
	returnHandlers := handlers.NewReturnHandlers(container.Services.Returns)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(readiness)),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithReturnRoutes(returnHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("atelier-goods api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
