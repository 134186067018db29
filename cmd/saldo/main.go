package main

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"saldo/internal/aggregate"
	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cache"
	"saldo/internal/cli"
	"saldo/internal/core"
	apphttp "saldo/internal/http"
	"saldo/internal/log"
	"saldo/internal/metrics"
	"saldo/internal/services"
	"saldo/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info", "text"))
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	loc := cli.MustLocation(logger, cfg)

	ctx := context.Background()
	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg, loc)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	cacheMgr := cache.NewManager()
	caches := services.NewCaches(cfg.CacheSize, cfg.CacheTTL, cacheMgr)
	cacheMgr.StartCleanup(ctx, time.Minute)

	// AMQP is optional; without it each instance only sees its own writes.
	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, uuid.NewString())
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		publisher = amqpClient
		logger.WithComponent(log.ComponentAMQP).Info("AMQP enabled", "exchange", cfg.AMQPExchange, "instance_id", amqpClient.InstanceID())
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	engine := aggregate.New(core.DefaultCatalog(), loc)
	finance := services.NewFinanceService(result.Source, engine, caches, m)
	records := services.NewRecordService(result.Source, core.DefaultCatalog(), loc, caches, publisher, m)

	srv := apphttp.NewServer(":"+cfg.Port, finance, records, apphttp.Options{
		Metrics:  m,
		Logger:   logger,
		Ready:    result.Ping,
		Location: loc,
	})

	workerCtx, stopWorker := context.WithCancel(ctx)
	var invalidation *worker.InvalidationWorker
	if amqpClient != nil {
		invalidation = worker.NewInvalidationWorker(amqpClient, caches, m)
		invalidation.Start(workerCtx)
		go func() {
			if err := <-invalidation.Err(); err != nil {
				logger.Error("Cache invalidation disabled", "error", err)
			}
		}()
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		stopWorker()
		if invalidation != nil {
			invalidation.Wait()
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		cacheMgr.Stop()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting saldo server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
