package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/api"
	"github.com/privacychecker/audit-core/internal/api/handlers"
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

	handler := handlers.New(service, jobQueue, repo, store, grader, logger)
	server := api.NewServer(cfg, handler, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go collector.StartRemoteWrite(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	logger.Info("API server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
