package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"paysync/internal/config"
	"paysync/internal/payment"
)

const defaultBatchSize = 50

// Reconciler polls the gateway for orders stuck in a non-final state.
type Reconciler interface {
	Reconcile(ctx context.Context, limit int) (payment.ReconcileReport, error)
}

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron       *cron.Cron
	cfg        config.ReconcileConfig
	reconciler Reconciler
	logger     *zap.Logger
	timeout    time.Duration
}

// New creates a new cron scheduler. Overlapping runs of the same job are skipped.
func New(cfg config.ReconcileConfig, reconciler Reconciler, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cfg:        cfg,
		reconciler: reconciler,
		logger:     logger,
		timeout:    5 * time.Minute,
	}
}

// Start registers and starts all cron jobs. An empty schedule disables reconciliation.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...")

	if s.cfg.Schedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.Schedule, func() {
			s.logger.Debug("Running: reconcile payments")
			s.reconcile()
		}); err != nil {
			return fmt.Errorf("schedule reconcile %q: %w", s.cfg.Schedule, err)
		}
	} else {
		s.logger.Info("Payment reconciliation disabled")
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) reconcile() {
	defer s.recoverFromPanic("reconcile")

	limit := s.cfg.BatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.reconciler.Reconcile(ctx, limit)
	if err != nil {
		s.logger.Error("Reconcile failed", zap.Error(err))
		return
	}
	s.logger.Info("Reconcile completed",
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
