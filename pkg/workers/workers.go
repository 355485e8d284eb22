package workers

import (
	"context"
	"log/slog"
	"time"

	"community-moderation/pkg/workers/reversals"
	"community-moderation/pkg/workers/sweeper"
)

type workerFunc = func(ctx context.Context) (interval time.Duration, err error)

type worker struct {
	sweeper   sweeper.Worker
	reversals reversals.Worker
	logger    *slog.Logger
}

type Workers interface {
	Start(ctx context.Context) (err error)
}

func (w *worker) Start(ctx context.Context) (err error) {
	go w.run(ctx, "SweepExpiredBans", w.sweeper.SweepExpiredBans)
	go w.run(ctx, "RetryReversals", w.reversals.RetryReversals)

	return nil
}

func (w *worker) run(ctx context.Context, name string, f workerFunc) {
	logger := w.logger.With(slog.String("run_worker", name))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			interval, err := f(ctx)
			if err != nil {
				logger.Error(err.Error())
			}
			if interval <= 0 {
				interval = time.Second
			}
			t := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

func NewWorkers(
	sweeper sweeper.Worker,
	reversals reversals.Worker,
	logger *slog.Logger,
) Workers {
	return &worker{
		sweeper:   sweeper,
		reversals: reversals,
		logger:    logger,
	}
}
