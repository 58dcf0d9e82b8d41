package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/config"
	"github.com/privacychecker/audit-core/internal/db"
	"github.com/privacychecker/audit-core/internal/domainrisk"
	"github.com/privacychecker/audit-core/internal/emailauth"
	"github.com/privacychecker/audit-core/internal/metrics"
	"github.com/privacychecker/audit-core/internal/pipeline"
	"github.com/privacychecker/audit-core/internal/queue"
	"github.com/privacychecker/audit-core/internal/resolver"
	"github.com/privacychecker/audit-core/internal/storage/redis"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	database, err := db.NewConnection(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	repo := db.NewRepository(database)

	store := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer store.Close()
	jobQueue := queue.NewRedisQueue(store.Client)

	dnsClient := resolver.New(resolver.Config{
		Server:    cfg.DNS.Server,
		QPS:       cfg.DNS.QPS,
		Burst:     cfg.DNS.Burst,
		Selectors: cfg.DNS.Selectors,
	}, logger)
	grader := emailauth.NewGrader(dnsClient, logger)

	collector := metrics.NewCollector(cfg.Mimir)
	risk := domainrisk.NewChecker(logger)

	service := pipeline.NewService(
		cfg.Pipeline, cfg.Redis.DriftTTL,
		store, repo, grader, risk, collector, logger,
	)
	pool := pipeline.NewWorkerPool(service, jobQueue, collector, cfg.Pipeline.WorkerCount, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go collector.StartRemoteWrite(ctx)

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()
	logger.Info("Worker started", zap.Int("workers", cfg.Pipeline.WorkerCount))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-done
	logger.Info("Worker exited")
}
