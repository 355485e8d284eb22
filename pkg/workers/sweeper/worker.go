package sweeper

import (
	"context"
	"log/slog"
	"time"
)

type repository interface {
	SweepExpiredBans(ctx context.Context) (int64, error)
}

type sweeperWorker struct {
	repo     repository
	interval time.Duration
	logger   *slog.Logger
}

type Worker interface {
	SweepExpiredBans(ctx context.Context) (interval time.Duration, err error)
}

// SweepExpiredBans flips is_active off on bans whose expiry has passed.
// Effective ban state is derived from timestamps at read time, so the
// sweep only reconciles the stored flag and never changes visible
// behavior.
func (w *sweeperWorker) SweepExpiredBans(ctx context.Context) (interval time.Duration, err error) {
	const failureInterval = 5 * time.Second

	log := w.logger.With("worker", "SweepExpiredBans")

	interval = w.interval

	swept, err := w.repo.SweepExpiredBans(ctx)
	if err != nil {
		log.Error("failed to sweep expired bans", slog.String("err", err.Error()))
		interval = failureInterval
		return
	}

	if swept > 0 {
		log.Info("swept expired bans", slog.Int64("swept", swept))
	}

	return
}

func NewWorker(repo repository, interval time.Duration, logger *slog.Logger) Worker {
	return &sweeperWorker{
		repo:     repo,
		interval: interval,
		logger:   logger,
	}
}
