package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pricehawk/internal/model"
)

// UpsertProduct 写入或按主键原地更新商品。
//
// 商品身份由 (name, retailer) 的确定性哈希决定，重复抓取同一商品
// 只刷新价格、链接、图片和规格，不产生新行。
func (s *Store) UpsertProduct(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		p.ID = model.ProductID(p.Name, p.Retailer)
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "url", "image_url", "specs", "updated_at"}),
	}).Create(p).Error; err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// GetProduct 按 ID 取商品，不存在时返回 ErrProductNotFound。
func (s *Store) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	return &p, nil
}

// RecordSearch 记录一条搜索词，供最近搜索接口使用。
func (s *Store) RecordSearch(ctx context.Context, query string) error {
	q := model.SearchQuery{Query: query, CreatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(&q).Error; err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// RecentSearches 返回最近 limit 条搜索词，新的在前。
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]model.SearchQuery, error) {
	var out []model.SearchQuery
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	return out, nil
}
