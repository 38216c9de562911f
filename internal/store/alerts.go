package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pricehawk/internal/model"
)

// CreateOrUpdateAlert 创建价格告警。
//
// 同一 (product_id, contact_email) 最多存在一条 active 告警：
// 已存在时在原告警上更新目标价与条件，并清空 last_checked，
// 返回原告警 ID；不存在时新建。
func (s *Store) CreateOrUpdateAlert(ctx context.Context, productID string, targetPrice decimal.Decimal, condition, email string) (string, error) {
	if !targetPrice.IsPositive() {
		return "", ErrInvalidTargetPrice
	}
	condition = strings.ToLower(strings.TrimSpace(condition))
	if condition != model.ConditionAbove && condition != model.ConditionBelow {
		return "", ErrInvalidCondition
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return "", err
	}

	unlock := s.Lock(productID)
	defer unlock()

	var existing model.PriceAlert
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND contact_email = ? AND is_active = ?", productID, email, true).
		First(&existing).Error
	switch {
	case err == nil:
		if err := s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"target_price": targetPrice,
			"condition":    condition,
			"last_checked": nil,
		}).Error; err != nil {
			return "", fmt.Errorf("update alert %s: %w", existing.ID, err)
		}
		return existing.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		alert := model.PriceAlert{
			ID:           uuid.NewString(),
			ProductID:    productID,
			TargetPrice:  targetPrice,
			Condition:    condition,
			ContactEmail: email,
			IsActive:     true,
		}
		if err := s.db.WithContext(ctx).Create(&alert).Error; err != nil {
			return "", fmt.Errorf("create alert: %w", err)
		}
		return alert.ID, nil
	default:
		return "", fmt.Errorf("lookup alert: %w", err)
	}
}

// DeactivateAlert 永久关闭告警，对已关闭的告警重复调用是无操作。
func (s *Store) DeactivateAlert(ctx context.Context, alertID string) error {
	result := s.db.WithContext(ctx).
		Model(&model.PriceAlert{}).
		Where("id = ?", alertID).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivate alert %s: %w", alertID, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		s.db.WithContext(ctx).Model(&model.PriceAlert{}).Where("id = ?", alertID).Count(&count)
		if count == 0 {
			return ErrAlertNotFound
		}
	}
	return nil
}

// ActiveAlerts 返回商品上全部 active 告警。
func (s *Store) ActiveAlerts(ctx context.Context, productID string) ([]model.PriceAlert, error) {
	var alerts []model.PriceAlert
	if err := s.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("created_at ASC").
		Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list active alerts for %s: %w", productID, err)
	}
	return alerts, nil
}

// FinishAlertEvaluation 记录一次评估：写 last_checked，触发过的告警同时翻为 inactive。
func (s *Store) FinishAlertEvaluation(ctx context.Context, alertID string, checkedAt time.Time, triggered bool) error {
	updates := map[string]interface{}{"last_checked": checkedAt}
	if triggered {
		updates["is_active"] = false
	}
	if err := s.db.WithContext(ctx).
		Model(&model.PriceAlert{}).
		Where("id = ?", alertID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("finish alert evaluation %s: %w", alertID, err)
	}
	return nil
}

// GetAlert 按 ID 取告警，不存在时返回 ErrAlertNotFound。
func (s *Store) GetAlert(ctx context.Context, alertID string) (*model.PriceAlert, error) {
	var alert model.PriceAlert
	if err := s.db.WithContext(ctx).First(&alert, "id = ?", alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("get alert %s: %w", alertID, err)
	}
	return &alert, nil
}
