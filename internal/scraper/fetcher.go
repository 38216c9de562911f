package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricehawk/internal/config"
	"pricehawk/internal/pkg/dedup"
	"pricehawk/internal/pkg/ratelimit"
)

// ErrRecentlyFetched 表示该地址在去重窗口内刚被抓取过，本次跳过。
var ErrRecentlyFetched = errors.New("url recently fetched")

// Fetcher 适配器共用的 HTTP 抓取器，统一处理限流、节流、去重和请求头。
type Fetcher struct {
	client   *http.Client
	ua       string
	limiter  *ratelimit.RateLimiter
	throttle *ratelimit.Throttle
	deduper  *dedup.Deduplicator
	logger   *slog.Logger
}

// NewFetcher 创建抓取器。limiter 和 deduper 允许为 nil（对应能力退化为直通）。
func NewFetcher(cfg *config.ScraperConfig, limiter *ratelimit.RateLimiter, deduper *dedup.Deduplicator, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		ua:       cfg.UserAgent,
		limiter:  limiter,
		throttle: ratelimit.NewThrottle(cfg.MinRequestDelay, cfg.MaxRequestDelay),
		deduper:  deduper,
		logger:   logger,
	}
}

// Document 抓取 pageURL 并解析为 goquery 文档。
// 窗口内重复抓取返回 ErrRecentlyFetched，非 2xx 状态码返回错误。
func (f *Fetcher) Document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if f.deduper != nil {
		seen, err := f.deduper.RecentlyFetched(ctx, pageURL)
		if err != nil {
			f.logger.Warn("dedup check failed, proceeding with fetch", "url", pageURL, "error", err)
		} else if seen {
			return nil, ErrRecentlyFetched
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("acquire rate limit token: %w", err)
		}
	}
	if err := f.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	f.logger.Debug("page fetched",
		"url", pageURL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return doc, nil
}
