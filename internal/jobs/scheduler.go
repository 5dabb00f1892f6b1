package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/finplay/settlement/internal/config"
	"github.com/finplay/settlement/internal/repositories"
	"github.com/finplay/settlement/internal/services"
	"github.com/finplay/settlement/pkg/logger"
)

// Scheduler runs the housekeeping jobs: sweeping expired idempotency
// keys and flagging orders stuck in the review queue.
type Scheduler struct {
	sched  gocron.Scheduler
	store  repositories.Store
	orders *services.OrderService
	cfg    *config.Config
}

func NewScheduler(cfg *config.Config, store repositories.Store, orders *services.OrderService) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched: sched, store: store, orders: orders, cfg: cfg}, nil
}

func (s *Scheduler) Start() error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(s.sweepIdempotencyKeys),
	)
	if err != nil {
		return err
	}

	_, err = s.sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(s.flagStaleOrders),
	)
	if err != nil {
		return err
	}

	s.sched.Start()
	logger.Info("Scheduler started",
		"idempotency_retention", s.cfg.IdempotencyRetention().String(),
		"stale_pending_threshold", s.cfg.StalePendingThreshold().String())
	return nil
}

func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) sweepIdempotencyKeys() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.cfg.IdempotencyRetention())
	removed, err := s.store.Keys().DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error("Idempotency key sweep failed", "error", err)
		return
	}
	if removed > 0 {
		logger.Info("Swept expired idempotency keys", "removed", removed)
	}
}

func (s *Scheduler) flagStaleOrders() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	flagged, err := s.orders.FlagStalePending(ctx, s.cfg.StalePendingThreshold())
	if err != nil {
		logger.Error("Stale order scan failed", "error", err)
		return
	}
	if flagged > 0 {
		logger.Warn("Orders stuck in review queue", "count", flagged)
	}
}
