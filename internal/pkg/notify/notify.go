package notify

import (
	"context"

	"github.com/shopspring/decimal"

	"pricehawk/internal/model"
)

// Event 一次告警触发产生的通知事件。
//
// 核心只负责构造事件，实际投递（邮件等）由 Notifier 实现方完成。
type Event struct {
	AlertID         string          // 触发的告警 ID
	ContactEmail    string          // 接收端点
	Product         *model.Product  // 关联商品（可能为 nil，孤儿告警时降级处理）
	TriggeringPrice decimal.Decimal // 触发时的观测价格
	TargetPrice     decimal.Decimal // 告警目标价
	Condition       string          // above / below
}

// Notifier 定义通知派发接口。
type Notifier interface {
	// Dispatch 派发一条告警通知。
	//
	// 投递失败只影响本次通知，不影响告警状态机。
	Dispatch(ctx context.Context, event Event) error
}

// Discard 丢弃所有通知的空实现，用于测试与未配置邮件的场景。
type Discard struct{}

func (Discard) Dispatch(ctx context.Context, event Event) error { return nil }
