package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricehawk/internal/api"
	"pricehawk/internal/config"
	"pricehawk/internal/pkg/dedup"
	"pricehawk/internal/pkg/logger"
	"pricehawk/internal/pkg/notify"
	"pricehawk/internal/pkg/queue"
	"pricehawk/internal/pkg/ratelimit"
	"pricehawk/internal/scheduler"
	"pricehawk/internal/scraper"
	"pricehawk/internal/service"
	"pricehawk/internal/store"
)

// main 是服务入口。
//
// 它负责：
// 1. 加载配置并初始化日志
// 2. 连接 MySQL / Redis 并完成迁移
// 3. 组装抓取、存储、告警与调度组件
// 4. 启动 HTTP 服务并处理优雅关闭
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("init store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	limiter := ratelimit.NewRedisRateLimiter(st.Redis(), appLogger, "pricehawk:ratelimit:scrape", cfg.App.RateLimit, cfg.App.RateBurst)
	deduper := dedup.NewDeduplicator(st.Redis(), cfg.App.DedupWindow)
	fetcher := scraper.NewFetcher(&cfg.Scraper, limiter, deduper, appLogger)
	registry := scraper.NewRegistry(fetcher, appLogger)
	aggregator := scraper.NewAggregator(registry, scraper.AggregatorConfig{
		SourceTimeout: cfg.App.SourceTimeout,
		DemoFallback:  cfg.App.DemoFallback,
	}, appLogger)
	pages := scraper.NewProductPageScraper(fetcher, appLogger)

	notifier := notify.NewEmailNotifier(&cfg.Email, appLogger)
	alertEngine := service.NewAlertEngine(st, notifier, appLogger)
	searchService := service.NewSearchService(aggregator, pages, st, alertEngine, appLogger)

	refreshQueue := queue.NewQueue(appLogger, cfg.App.WorkerPoolSize, cfg.App.QueueCapacity)
	sched := scheduler.New(st, searchService, refreshQueue, cfg.Alert.CheckInterval, appLogger)
	sched.Start(ctx)

	srv := api.NewServer(cfg, appLogger, st, searchService, alertEngine)
	httpServer := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: srv.Router(),
	}

	go func() {
		appLogger.Info("server listening", slog.String("addr", cfg.App.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server run failed", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	sched.Stop(10 * time.Second)
}
