package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return rdb
}

func TestRateLimiter_BasicAcquireReducesTokens(t *testing.T) {
	rdb := newMiniRedis(t)

	limiter := NewRedisRateLimiter(rdb, nil, "test:ratelimit:basic", 10, 2)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	tokensStr, err := rdb.HGet(context.Background(), limiter.key, "tokens").Result()
	if err != nil {
		t.Fatalf("hget tokens: %v", err)
	}
	tokens, err := strconv.ParseFloat(tokensStr, 64)
	if err != nil {
		t.Fatalf("parse tokens: %v", err)
	}
	if tokens > 1.1 {
		t.Fatalf("expected tokens to decrease, got %.2f", tokens)
	}
}

func TestRateLimiter_AcquireBlocksUntilToken(t *testing.T) {
	rdb := newMiniRedis(t)

	limiter := NewRedisRateLimiter(rdb, nil, "test:ratelimit:block", 10, 1)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("warm acquire: %v", err)
	}

	start := time.Now()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("blocked acquire: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 90*time.Millisecond {
		t.Fatalf("expected blocking, elapsed=%v", elapsed)
	}
}

func TestRateLimiter_ContextTimeout(t *testing.T) {
	rdb := newMiniRedis(t)

	limiter := NewRedisRateLimiter(rdb, nil, "test:ratelimit:timeout", 1, 1)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("warm acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrRateLimitTimeout) {
		t.Fatalf("expected ErrRateLimitTimeout, got %v", err)
	}
}

func TestRateLimiter_NilLimiterIsNoop(t *testing.T) {
	var limiter *RateLimiter
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("nil limiter acquire: %v", err)
	}
}

func TestThrottle_DelayWithinBounds(t *testing.T) {
	throttle := NewThrottle(100*time.Millisecond, 300*time.Millisecond)
	for i := 0; i < 50; i++ {
		d := throttle.Delay()
		if d < 100*time.Millisecond || d >= 300*time.Millisecond {
			t.Fatalf("delay out of bounds: %v", d)
		}
	}
}

func TestThrottle_ZeroRangeNoDelay(t *testing.T) {
	throttle := NewThrottle(0, 0)
	if d := throttle.Delay(); d != 0 {
		t.Fatalf("expected zero delay, got %v", d)
	}
	if d := NewThrottle(-time.Second, time.Second).Delay(); d != 0 {
		t.Fatalf("expected degraded throttle to yield zero delay, got %v", d)
	}
}

func TestThrottle_WaitUsesInjectedSleep(t *testing.T) {
	var mu sync.Mutex
	var slept []time.Duration
	throttle := NewThrottle(50*time.Millisecond, 60*time.Millisecond).
		WithSleep(func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			slept = append(slept, d)
			mu.Unlock()
			return nil
		})

	if err := throttle.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(slept) != 1 {
		t.Fatalf("expected exactly one sleep, got %d", len(slept))
	}
	if slept[0] < 50*time.Millisecond || slept[0] >= 60*time.Millisecond {
		t.Fatalf("sleep duration out of bounds: %v", slept[0])
	}
}

func TestThrottle_WaitCancellation(t *testing.T) {
	throttle := NewThrottle(time.Second, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := throttle.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
