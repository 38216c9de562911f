package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"pricehawk/internal/model"
)

// Append 追加一条价格观测。
//
// (product_id, observed_at) 上的唯一索引保证幂等：重复追加同一键
// 是无操作，返回 inserted=false 而不是错误。真正插入成功后由调用方
// 负责失效统计缓存。
func (s *Store) Append(ctx context.Context, obs *model.PriceObservation) (bool, error) {
	obs.ObservedAt = obs.ObservedAt.Truncate(time.Second)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "observed_at"}},
		DoNothing: true,
	}).Create(obs)
	if result.Error != nil {
		return false, fmt.Errorf("append observation for %s: %w", obs.ProductID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// History 返回商品在 [from, to] 范围内的观测，observed_at 升序。
// from/to 为零值时表示该端不设界。
func (s *Store) History(ctx context.Context, productID string, from, to time.Time) ([]model.PriceObservation, error) {
	q := s.db.WithContext(ctx).Where("product_id = ?", productID)
	if !from.IsZero() {
		q = q.Where("observed_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("observed_at <= ?", to)
	}

	var out []model.PriceObservation
	if err := q.Order("observed_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query history for %s: %w", productID, err)
	}
	return out, nil
}

// Latest 返回商品最近 n 条观测，observed_at 降序。
func (s *Store) Latest(ctx context.Context, productID string, n int) ([]model.PriceObservation, error) {
	var out []model.PriceObservation
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("observed_at DESC").
		Limit(n).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query latest observations for %s: %w", productID, err)
	}
	return out, nil
}
