package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"pricehawk/internal/config"
	"pricehawk/internal/model"
)

// 存储层错误。
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrAlertNotFound      = errors.New("alert not found")
	ErrInvalidTargetPrice = errors.New("target price must be positive")
	ErrInvalidCondition   = errors.New("condition must be above or below")
)

// Store 持久化门面：MySQL 承载事实数据，Redis 承载派生缓存。
//
// 同一商品的写序列（追加观测、失效统计、评估告警）通过 Lock
// 串行化，不同商品的写互不阻塞。
type Store struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *slog.Logger
	locks  keyMutex
}

// Open 按配置连接 MySQL 与 Redis 并完成自动迁移。
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := New(db, rdb, logger)
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New 从已建立的连接构造 Store，测试通过它注入 sqlite 和 miniredis。
func New(db *gorm.DB, rdb *redis.Client, logger *slog.Logger) *Store {
	return &Store{db: db, rdb: rdb, logger: logger}
}

// AutoMigrate 迁移全部持久化模型。
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(
		&model.Product{},
		&model.PriceObservation{},
		&model.TrackedProduct{},
		&model.PriceAlert{},
		&model.SearchQuery{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping 检查数据库与 Redis 的连通性，任一失败即失败。
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.WithContext(ctx).DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}
	return nil
}

// Lock 获取商品级写锁，返回解锁函数。
func (s *Store) Lock(productID string) func() {
	return s.locks.Lock(productID)
}

// Redis 返回底层 Redis 客户端，供限流器和去重器共用同一连接。
func (s *Store) Redis() *redis.Client {
	return s.rdb
}
