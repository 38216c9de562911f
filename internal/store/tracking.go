package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pricehawk/internal/model"
)

// Toggle 切换商品的关注状态，返回切换后是否处于关注中。
// 对不存在的商品返回 ErrProductNotFound。
func (s *Store) Toggle(ctx context.Context, productID string) (bool, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return false, err
	}

	unlock := s.Lock(productID)
	defer unlock()

	tracked, err := s.IsTracked(ctx, productID)
	if err != nil {
		return false, err
	}
	if tracked {
		if err := s.db.WithContext(ctx).Delete(&model.TrackedProduct{}, "product_id = ?", productID).Error; err != nil {
			return false, fmt.Errorf("untrack %s: %w", productID, err)
		}
		return false, nil
	}
	row := model.TrackedProduct{ProductID: productID, TrackedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return false, fmt.Errorf("track %s: %w", productID, err)
	}
	return true, nil
}

// IsTracked 查询商品当前是否被关注。
func (s *Store) IsTracked(ctx context.Context, productID string) (bool, error) {
	var row model.TrackedProduct
	err := s.db.WithContext(ctx).First(&row, "product_id = ?", productID).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check tracked %s: %w", productID, err)
}

// ListTracked 返回关注列表，按关注时间倒序。
//
// 每条记录用最近两次观测富化：PriceChange = 最新 - 上一次，
// 观测不足两次时为 0。
func (s *Store) ListTracked(ctx context.Context) ([]model.TrackedProductView, error) {
	var rows []model.TrackedProduct
	if err := s.db.WithContext(ctx).Order("tracked_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tracked: %w", err)
	}

	views := make([]model.TrackedProductView, 0, len(rows))
	for _, row := range rows {
		product, err := s.GetProduct(ctx, row.ProductID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				// 商品行被人工清理后残留的关注记录，跳过。
				s.logger.Warn("tracked product row without product, skipping", "product_id", row.ProductID)
				continue
			}
			return nil, err
		}

		view := model.TrackedProductView{
			Product:      *product,
			TrackedAt:    row.TrackedAt,
			CurrentPrice: product.Price,
		}
		recent, err := s.Latest(ctx, row.ProductID, 2)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			view.CurrentPrice = recent[0].Price
		}
		if len(recent) == 2 {
			view.PriceChange = recent[0].Price.Sub(recent[1].Price)
		}
		views = append(views, view)
	}
	return views, nil
}

// TrackedIDs 返回全部被关注商品的 ID，供定时刷新使用。
func (s *Store) TrackedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&model.TrackedProduct{}).
		Order("tracked_at DESC").
		Pluck("product_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list tracked ids: %w", err)
	}
	return ids, nil
}
