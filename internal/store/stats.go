package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"pricehawk/internal/model"
	"pricehawk/internal/pkg/metrics"
)

const (
	statsKeyPrefix = "pricehawk:stats:"
	statsCacheTTL  = 24 * time.Hour
)

// ErrNoObservations 表示商品还没有任何价格观测，统计无从计算。
var ErrNoObservations = errors.New("no price observations for product")

// Stats 返回商品价格历史的最高/最低/平均值。
//
// 结果缓存在 Redis，观测追加后由 InvalidateStats 失效。缓存只按
// product_id 命名，不存在跨商品串数据；Redis 不可用时退化为每次
// 直接从数据库重算，不影响正确性。
func (s *Store) Stats(ctx context.Context, productID string) (*model.PriceStats, error) {
	key := statsKeyPrefix + productID

	if s.rdb != nil {
		payload, err := s.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var stats model.PriceStats
			if err := json.Unmarshal(payload, &stats); err == nil {
				metrics.StatsCacheOps.WithLabelValues("hit").Inc()
				return &stats, nil
			}
			// 缓存内容损坏按未命中处理，重算后覆盖。
			s.logger.Warn("corrupt stats cache entry, recomputing", "product_id", productID)
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("stats cache read failed, falling back to db", "product_id", productID, "error", err)
		}
	}
	metrics.StatsCacheOps.WithLabelValues("miss").Inc()

	stats, err := s.computeStats(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.rdb.Set(ctx, key, payload, statsCacheTTL).Err(); err != nil {
				s.logger.Warn("stats cache write failed", "product_id", productID, "error", err)
			}
		}
	}
	return stats, nil
}

// InvalidateStats 删除商品的统计缓存，下次读取时重算。
func (s *Store) InvalidateStats(ctx context.Context, productID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, statsKeyPrefix+productID).Err(); err != nil {
		s.logger.Warn("stats cache invalidation failed", "product_id", productID, "error", err)
		return
	}
	metrics.StatsCacheOps.WithLabelValues("invalidate").Inc()
}

// computeStats 单趟扫描观测序列计算最高/最低/平均价。
func (s *Store) computeStats(ctx context.Context, productID string) (*model.PriceStats, error) {
	observations, err := s.History(ctx, productID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoObservations, productID)
	}

	stats := model.PriceStats{
		Highest: observations[0].Price,
		Lowest:  observations[0].Price,
	}
	sum := observations[0].Price
	for _, obs := range observations[1:] {
		if obs.Price.GreaterThan(stats.Highest) {
			stats.Highest = obs.Price
		}
		if obs.Price.LessThan(stats.Lowest) {
			stats.Lowest = obs.Price
		}
		sum = sum.Add(obs.Price)
	}
	stats.Average = sum.DivRound(decimal.NewFromInt(int64(len(observations))), 2)
	return &stats, nil
}
