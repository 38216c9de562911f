package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Throttle 在两次抓取请求之间插入 [min, max) 的随机延迟。
//
// 目标站点没有公开的限流协议，随机间隔比固定间隔更不容易被识别。
// sleep 函数可注入，测试中替换为假实现即可做到确定性验证。
type Throttle struct {
	min   time.Duration
	max   time.Duration
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewThrottle 创建一个随机延迟节流器。
//
// min > max 或任一为负时退化为不延迟。
func NewThrottle(min, max time.Duration) *Throttle {
	t := &Throttle{
		min:   min,
		max:   max,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepCtx,
	}
	if min < 0 || max < min {
		t.min, t.max = 0, 0
	}
	return t
}

// WithSleep 替换 sleep 实现，供测试注入。
func (t *Throttle) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Throttle {
	if sleep != nil {
		t.sleep = sleep
	}
	return t
}

// Delay 返回本次应等待的随机时长。
func (t *Throttle) Delay() time.Duration {
	if t == nil || t.max <= 0 {
		return 0
	}
	span := t.max - t.min
	if span <= 0 {
		return t.min
	}
	return t.min + time.Duration(t.rng.Int63n(int64(span)))
}

// Wait 等待一个随机延迟，ctx 取消时提前返回 ctx 的错误。
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	d := t.Delay()
	if d <= 0 {
		return nil
	}
	return t.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
