package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pricehawk/internal/model"
	"pricehawk/internal/pkg/metrics"
	"pricehawk/internal/pkg/notify"
	"pricehawk/internal/store"
)

// AlertEngine 价格告警的状态机。
//
// 告警是一次性的：触发后翻为 inactive，绝不重复触发。通知投递是
// 尽力而为的外部副作用，投递失败不回滚状态翻转。
type AlertEngine struct {
	store    *store.Store
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewAlertEngine(st *store.Store, notifier notify.Notifier, logger *slog.Logger) *AlertEngine {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &AlertEngine{store: st, notifier: notifier, logger: logger}
}

// CreateOrUpdateAlert 创建或原地更新告警，校验和 upsert 规则见存储层。
func (e *AlertEngine) CreateOrUpdateAlert(ctx context.Context, productID string, targetPrice decimal.Decimal, condition, email string) (string, error) {
	return e.store.CreateOrUpdateAlert(ctx, productID, targetPrice, condition, email)
}

// Deactivate 永久关闭告警。
func (e *AlertEngine) Deactivate(ctx context.Context, alertID string) error {
	return e.store.DeactivateAlert(ctx, alertID)
}

// Evaluate 用一次新的价格观测评估商品上的全部 active 告警。
//
// below 在 price <= target 时触发，above 在 price >= target 时触发。
// 每条告警无论是否触发都会写 last_checked。调用方负责以商品级
// 锁串行化同一商品的评估，本方法自身不加锁。
func (e *AlertEngine) Evaluate(ctx context.Context, productID string, price decimal.Decimal) {
	alerts, err := e.store.ActiveAlerts(ctx, productID)
	if err != nil {
		e.logger.Error("load active alerts failed", "product_id", productID, "error", err)
		return
	}
	if len(alerts) == 0 {
		return
	}

	var product *model.Product
	checkedAt := time.Now()

	for _, alert := range alerts {
		triggered := false
		switch alert.Condition {
		case model.ConditionBelow:
			triggered = price.LessThanOrEqual(alert.TargetPrice)
		case model.ConditionAbove:
			triggered = price.GreaterThanOrEqual(alert.TargetPrice)
		}

		if triggered {
			metrics.AlertsTriggeredTotal.WithLabelValues(alert.Condition).Inc()
			e.logger.Info("price alert triggered",
				"alert_id", alert.ID,
				"product_id", productID,
				"condition", alert.Condition,
				"target_price", alert.TargetPrice.String(),
				"observed_price", price.String())

			if product == nil {
				p, err := e.store.GetProduct(ctx, productID)
				if err != nil && !errors.Is(err, store.ErrProductNotFound) {
					e.logger.Error("load product for notification failed", "product_id", productID, "error", err)
				}
				product = p // 商品行缺失时以 nil 降级投递
			}
			event := notify.Event{
				AlertID:         alert.ID,
				ContactEmail:    alert.ContactEmail,
				Product:         product,
				TriggeringPrice: price,
				TargetPrice:     alert.TargetPrice,
				Condition:       alert.Condition,
			}
			if err := e.notifier.Dispatch(ctx, event); err != nil {
				metrics.NotifyFailuresTotal.Inc()
				e.logger.Error("alert notification dispatch failed",
					"alert_id", alert.ID,
					"email", alert.ContactEmail,
					"error", err)
			}
		}

		if err := e.store.FinishAlertEvaluation(ctx, alert.ID, checkedAt, triggered); err != nil {
			e.logger.Error("persist alert evaluation failed", "alert_id", alert.ID, "error", err)
		}
	}
}
