package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pricehawk/internal/model"
	"pricehawk/internal/pkg/metrics"
	"pricehawk/internal/scraper"
	"pricehawk/internal/store"
)

// Searcher 多来源搜索入口，由 scraper.Aggregator 实现。
type Searcher interface {
	Search(ctx context.Context, query string, sources []string, sortOrder string) []scraper.Item
}

// PageScraper 商品详情页抓取入口，由 scraper.ProductPageScraper 实现。
type PageScraper interface {
	Scrape(ctx context.Context, pageURL, retailer string) (*model.Product, error)
}

// SearchService 搜索与刷新主流程。
//
// 搜索结果在返回前全部落库：upsert 商品行、追加价格观测，真正
// 插入了新观测的商品再失效统计缓存并评估告警。单个商品的
// 追加/失效/评估序列持有该商品的键锁，不同商品并行推进。
type SearchService struct {
	searcher Searcher
	pages    PageScraper
	store    *store.Store
	alerts   *AlertEngine
	logger   *slog.Logger
}

func NewSearchService(searcher Searcher, pages PageScraper, st *store.Store, alerts *AlertEngine, logger *slog.Logger) *SearchService {
	return &SearchService{
		searcher: searcher,
		pages:    pages,
		store:    st,
		alerts:   alerts,
		logger:   logger,
	}
}

// PerformSearch 执行一次搜索并持久化结果，按请求的排序返回商品。
//
// 任何一条结果没有落库都算硬失败：丢观测会破坏历史数据的完整性，
// 所以存储错误汇总后返回给调用方，已提交的写入不回滚。
func (s *SearchService) PerformSearch(ctx context.Context, query string, sources []string, sortOrder string) ([]model.Product, error) {
	items := s.searcher.Search(ctx, query, sources, sortOrder)

	var (
		mu        sync.Mutex
		storeErrs []error
	)
	if err := s.store.RecordSearch(ctx, query); err != nil {
		s.logger.Error("record search query failed", "query", query, "error", err)
		storeErrs = append(storeErrs, fmt.Errorf("record search: %w", err))
	}

	observedAt := time.Now().Truncate(time.Second)
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(item *scraper.Item) {
			defer wg.Done()
			if err := s.persistItem(ctx, item, observedAt); err != nil {
				s.logger.Error("persist search result failed",
					"product_id", item.Product.ID,
					"retailer", item.Product.Retailer,
					"error", err)
				mu.Lock()
				storeErrs = append(storeErrs, fmt.Errorf("persist %s: %w", item.Product.ID, err))
				mu.Unlock()
			}
		}(&items[i])
	}
	wg.Wait()

	products := make([]model.Product, 0, len(items))
	for _, item := range items {
		products = append(products, item.Product)
	}
	return products, errors.Join(storeErrs...)
}

// persistItem 落库单条结果：同一商品的写序列在键锁内完成。
func (s *SearchService) persistItem(ctx context.Context, item *scraper.Item, observedAt time.Time) error {
	unlock := s.store.Lock(item.Product.ID)
	defer unlock()

	if err := s.store.UpsertProduct(ctx, &item.Product); err != nil {
		return err
	}

	inserted, err := s.store.Append(ctx, &model.PriceObservation{
		ProductID:  item.Product.ID,
		Price:      item.Product.Price,
		Retailer:   item.Product.Retailer,
		Rating:     item.Rating,
		Reviews:    item.Reviews,
		Shipping:   item.Shipping,
		ObservedAt: observedAt,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	metrics.ObservationsAppendedTotal.Inc()

	s.store.InvalidateStats(ctx, item.Product.ID)
	s.alerts.Evaluate(ctx, item.Product.ID, item.Product.Price)
	return nil
}

// RefreshProduct 重抓单个商品的详情页并走同一条落库与评估路径。
//
// 演示商品没有真实详情页，直接跳过。
func (s *SearchService) RefreshProduct(ctx context.Context, productID string) error {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product.Retailer == scraper.DemoRetailer {
		s.logger.Debug("skip refresh for demo product", "product_id", productID)
		return nil
	}
	if product.URL == "" {
		s.logger.Warn("tracked product has no source url, skipping refresh", "product_id", productID)
		return nil
	}

	fresh, err := s.pages.Scrape(ctx, product.URL, product.Retailer)
	if err != nil {
		if errors.Is(err, scraper.ErrRecentlyFetched) {
			s.logger.Debug("refresh skipped, page recently fetched", "product_id", productID)
			return nil
		}
		return err
	}

	// 详情页重算的身份必须与被刷新的商品一致，改名视为换品，丢弃。
	if fresh.ID != productID {
		s.logger.Warn("refreshed page resolved to a different product, dropping",
			"product_id", productID,
			"resolved_id", fresh.ID)
		return nil
	}

	item := scraper.Item{Product: *fresh}
	return s.persistItem(ctx, &item, time.Now().Truncate(time.Second))
}
