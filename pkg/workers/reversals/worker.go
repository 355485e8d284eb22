package reversals

import (
	"context"
	"log/slog"
	"time"

	"community-moderation/pkg/constants"
	"community-moderation/pkg/models/db"
)

const batchLimit = 50

type repository interface {
	GetPendingReversals(ctx context.Context, limit int) ([]db.ModerationAppeal, error)
	LiftBan(ctx context.Context, id, liftedBy string, at time.Time) (*db.CommunityBan, error)
	RevertAction(ctx context.Context, id string) (*db.ModerationAction, error)
	ClearReversal(ctx context.Context, id string) error
}

type emitter interface {
	Emit(eventType string, payload any)
}

type reversalsWorker struct {
	repo     repository
	emitter  emitter
	interval time.Duration
	logger   *slog.Logger
}

type Worker interface {
	RetryReversals(ctx context.Context) (interval time.Duration, err error)
}

// RetryReversals finishes overturn decisions whose ban lift or action
// revert failed at decision time. The decision itself is already
// durable, so each retry only re-applies the side effect and clears
// the pending flag. A target that is already inactive or reverted
// counts as done.
func (w *reversalsWorker) RetryReversals(ctx context.Context) (interval time.Duration, err error) {
	const failureInterval = 5 * time.Second

	log := w.logger.With("worker", "RetryReversals")

	interval = w.interval

	appeals, err := w.repo.GetPendingReversals(ctx, batchLimit)
	if err != nil {
		log.Error("failed to load pending reversals", slog.String("err", err.Error()))
		interval = failureInterval
		return
	}

	for _, appeal := range appeals {
		if err := w.reverse(ctx, appeal); err != nil {
			log.Error("failed to retry reversal",
				slog.String("appeal_id", appeal.ID),
				slog.String("err", err.Error()))
			interval = failureInterval
			continue
		}

		if err := w.repo.ClearReversal(ctx, appeal.ID); err != nil {
			log.Error("failed to clear reversal flag",
				slog.String("appeal_id", appeal.ID),
				slog.String("err", err.Error()))
			interval = failureInterval
			continue
		}

		log.Info("reversal completed",
			slog.String("appeal_id", appeal.ID),
			slog.String("target_type", appeal.TargetType),
			slog.String("target_id", appeal.TargetID))
	}

	return interval, nil
}

func (w *reversalsWorker) reverse(ctx context.Context, appeal db.ModerationAppeal) error {
	actorID := appeal.AppellantID
	if appeal.ReviewedBy != nil {
		actorID = *appeal.ReviewedBy
	}

	switch appeal.TargetType {
	case constants.AppealTargetBan:
		ban, err := w.repo.LiftBan(ctx, appeal.TargetID, actorID, time.Now())
		if err != nil {
			return err
		}
		if ban != nil {
			w.emitter.Emit("ban.lifted", ban)
		}
	case constants.AppealTargetAction:
		action, err := w.repo.RevertAction(ctx, appeal.TargetID)
		if err != nil {
			return err
		}
		if action != nil {
			w.emitter.Emit("action.reverted", action)
		}
	}

	return nil
}

func NewWorker(repo repository, emitter emitter, interval time.Duration, logger *slog.Logger) Worker {
	return &reversalsWorker{
		repo:     repo,
		emitter:  emitter,
		interval: interval,
		logger:   logger,
	}
}
