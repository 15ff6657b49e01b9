package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"babelfeed/internal/config"
	"babelfeed/internal/db"
	"babelfeed/internal/engine"
	"babelfeed/internal/feedio"
	"babelfeed/internal/logger"
	"babelfeed/internal/queue"
	"babelfeed/internal/repository"
	"babelfeed/internal/scheduler"
	"babelfeed/internal/service"
	"babelfeed/internal/snowflake"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.ParseLevel(cfg.LogLevel))

	if err := snowflake.Init(1); err != nil {
		log.Fatalf("init id generator: %v", err)
	}

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer dbConn.Close()

	sourceRepo := repository.NewSourceFeedRepository(dbConn)
	translatedRepo := repository.NewTranslatedFeedRepository(dbConn)
	engineRepo := repository.NewEngineRepository(dbConn)
	cacheRepo := repository.NewCacheRepository(dbConn)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	limiter := engine.NewRateLimiter(cfg.AIQPS)
	fetcher := feedio.NewFetcher(httpClient)
	articles := service.NewArticleService(httpClient)
	translator := service.NewTranslateService(cacheRepo, articles)

	q := queue.New(cfg.Workers)
	inflight := service.NewInflightSet()
	refresher := service.NewRefreshService(cfg, sourceRepo, translatedRepo, engineRepo, fetcher, translator, q, inflight, limiter)

	sched := scheduler.New(sourceRepo, q, refresher)
	if err := sched.Start(context.Background()); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	logger.Info("started", "module", "main", "action", "start", "resource", "app", "result", "ok", "data_dir", cfg.DataDir, "workers", cfg.Workers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down", "module", "main", "action", "stop", "resource", "app", "result", "ok")
	sched.Stop()
}
