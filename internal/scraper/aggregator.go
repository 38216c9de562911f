package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"pricehawk/internal/pkg/metrics"
)

// 结果排序方式。
const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
)

// AggregatorConfig 聚合器行为配置。
type AggregatorConfig struct {
	SourceTimeout time.Duration // 单个来源的抓取超时
	DemoFallback  bool          // 全部来源无结果时是否返回演示数据
}

// Aggregator 并发调度多来源搜索并汇总结果。
//
// 每个来源在独立 goroutine 中带超时执行，单来源失败只影响自己；
// 仅当所有来源都没有产出且启用了演示兜底时才返回占位数据。
type Aggregator struct {
	registry *Registry
	cfg      AggregatorConfig
	logger   *slog.Logger
}

func NewAggregator(registry *Registry, cfg AggregatorConfig, logger *slog.Logger) *Aggregator {
	return &Aggregator{registry: registry, cfg: cfg, logger: logger}
}

// Search 在指定来源上并发搜索。sources 为空时查询全部已注册来源，
// 未注册的来源记一条警告后跳过。sortOrder 不认识时退回 price_asc。
func (a *Aggregator) Search(ctx context.Context, query string, sources []string, sortOrder string) []Item {
	if len(sources) == 0 {
		sources = a.registry.Known()
	}

	// 每个来源写自己的槽位，合并顺序由请求的来源顺序决定，
	// 与 goroutine 完成先后无关。
	var (
		results = make([][]Item, len(sources))
		wg      sync.WaitGroup
		started int
	)
	for i, source := range sources {
		adapter, ok := a.registry.Get(source)
		if !ok {
			a.logger.Warn("unsupported retailer requested, skipping", "retailer", source)
			continue
		}
		started++

		wg.Add(1)
		go func(slot int, adapter SourceAdapter) {
			defer wg.Done()

			retailer := adapter.Retailer()
			srcCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
			defer cancel()

			start := time.Now()
			items, err := adapter.Search(srcCtx, query)
			metrics.ScrapeDuration.WithLabelValues(retailer).Observe(time.Since(start).Seconds())

			switch {
			case errors.Is(err, ErrRecentlyFetched):
				metrics.ScrapeRequestsTotal.WithLabelValues(retailer, "skipped").Inc()
				a.logger.Debug("search skipped, recently fetched", "retailer", retailer, "query", query)
				return
			case err != nil:
				metrics.ScrapeRequestsTotal.WithLabelValues(retailer, "error").Inc()
				a.logger.Error("retailer search failed", "retailer", retailer, "query", query, "error", err)
				return
			}
			metrics.ScrapeRequestsTotal.WithLabelValues(retailer, "ok").Inc()
			a.logger.Info("retailer search finished",
				"retailer", retailer,
				"query", query,
				"items", len(items),
				"duration_ms", time.Since(start).Milliseconds())

			results[slot] = items
		}(i, adapter)
	}
	wg.Wait()

	var merged []Item
	for _, items := range results {
		merged = append(merged, items...)
	}

	if len(merged) == 0 && a.cfg.DemoFallback {
		a.logger.Info("no live results from any retailer, serving demo data", "query", query, "sources", started)
		merged = DemoItems(query)
	}

	sortItems(merged, sortOrder)
	return merged
}

// sortItems 按排序方式稳定排序，保持同序元素的来源相对顺序。
func sortItems(items []Item, sortOrder string) {
	switch sortOrder {
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Product.Price.GreaterThan(items[j].Product.Price)
		})
	case SortNameAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Product.Name) < strings.ToLower(items[j].Product.Name)
		})
	case SortNameDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Product.Name) > strings.ToLower(items[j].Product.Name)
		})
	default: // price_asc
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Product.Price.LessThan(items[j].Product.Price)
		})
	}
}
