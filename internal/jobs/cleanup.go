// internal/jobs/cleanup.go
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cleaner is the part of the session store the worker drives.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
}

// CleanupWorker sweeps expired sessions on a fixed interval.
type CleanupWorker struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *zap.Logger
}

func NewCleanupWorker(cleaner Cleaner, interval time.Duration, logger *zap.Logger) *CleanupWorker {
	return &CleanupWorker{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the worker in the background until ctx is cancelled.
func (w *CleanupWorker) Start(ctx context.Context) {
	go w.Run(ctx)
}

// Run sweeps once immediately and then on every tick. A non-positive
// interval disables the worker.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("session cleanup worker disabled")
		return
	}

	w.logger.Info("session cleanup worker started", zap.Duration("interval", w.interval))
	w.runCleanup(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session cleanup worker stopped")
			return
		case <-ticker.C:
			w.runCleanup(ctx)
		}
	}
}

func (w *CleanupWorker) runCleanup(ctx context.Context) {
	started := time.Now()

	cleaned, err := w.cleaner.CleanupExpired(ctx)
	if err != nil {
		w.logger.Error("session cleanup failed", zap.Error(err))
		return
	}

	// Refreshes the active sessions gauge.
	active, err := w.cleaner.CountActive(ctx)
	if err != nil {
		w.logger.Warn("failed to count active sessions", zap.Error(err))
	}

	if cleaned > 0 {
		w.logger.Info("expired sessions cleaned up",
			zap.Int("cleaned", cleaned),
			zap.Int("active", active),
			zap.Duration("took", time.Since(started)),
		)
		return
	}
	w.logger.Debug("session cleanup found nothing to remove", zap.Int("active", active))
}
