package scheduler

import (
	"context"
	"log/slog"
	"time"

	"pricehawk/internal/pkg/queue"
	"pricehawk/internal/service"
	"pricehawk/internal/store"
)

// Scheduler 周期性刷新被关注商品的价格。
//
// 每个周期为每个被关注商品入队一个刷新任务，由固定大小的 worker
// 池消化，worker 数就是并发抓取上限。队列满时任务被丢弃，等下个
// 周期重试，不做积压。
type Scheduler struct {
	store    *store.Store
	search   *service.SearchService
	queue    *queue.Queue
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func New(st *store.Store, search *service.SearchService, q *queue.Queue, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    st,
		search:   search,
		queue:    q,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start 启动 worker 池和刷新循环，立即返回。
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.queue.SetErrorHandler(func(err error, _ queue.Job) {
		s.logger.Error("refresh job failed", "error", err)
	})
	s.queue.Start(ctx)

	go s.loop(ctx)
	s.logger.Info("scheduler started", "interval", s.interval.String())
}

// Stop 停止刷新循环并等待在途任务结束，最多等待 timeout。
func (s *Scheduler) Stop(timeout time.Duration) {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	if err := s.queue.ShutdownWithTimeout(timeout); err != nil {
		s.logger.Warn("scheduler shutdown timed out with jobs in flight", "error", err)
		return
	}
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueRefreshJobs(ctx)
		}
	}
}

// enqueueRefreshJobs 为每个被关注商品入队一个刷新任务。
func (s *Scheduler) enqueueRefreshJobs(ctx context.Context) {
	ids, err := s.store.TrackedIDs(ctx)
	if err != nil {
		s.logger.Error("list tracked products failed", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	enqueued := 0
	for _, id := range ids {
		productID := id
		ok := s.queue.Enqueue(func(jobCtx context.Context) error {
			return s.search.RefreshProduct(jobCtx, productID)
		})
		if !ok {
			s.logger.Warn("refresh queue full, deferring product to next cycle", "product_id", productID)
			continue
		}
		enqueued++
	}
	s.logger.Info("refresh cycle scheduled", "tracked", len(ids), "enqueued", enqueued)
}
