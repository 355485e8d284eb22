package actions

import (
	"context"
	"errors"
	"log/slog"

	"community-moderation/pkg/constants"
	"community-moderation/pkg/events"
	"community-moderation/pkg/models"
	v1 "community-moderation/pkg/models/api/v1"
	"community-moderation/pkg/models/db"
	"community-moderation/pkg/models/private"
	moderationRepo "community-moderation/pkg/repositories/moderation"
)

const closeReportAttempts = 3

type moderationDb interface {
	CreateAction(ctx context.Context, action db.ModerationAction) (db.ModerationAction, error)
	GetAction(ctx context.Context, id string) (*db.ModerationAction, error)
	GetActions(ctx context.Context, limit int, offset int) ([]db.ModerationAction, error)
	RevertAction(ctx context.Context, id string) (*db.ModerationAction, error)
	GetReport(ctx context.Context, id string) (*db.Report, error)
	UpdateReport(ctx context.Context, id string, expectedVersion int64, update moderationRepo.ReportUpdate) (*db.Report, error)
}

type contentStore interface {
	ApplyRemoval(ctx context.Context, targetType, targetID string) error
}

type service struct {
	repo    moderationDb
	content contentStore
	emitter events.Emitter
	logger  *slog.Logger
}

type Actions interface {
	Create(ctx context.Context, actor private.Actor, req v1.CreateAction) (v1.ModerationAction, error)
	Revert(ctx context.Context, actor private.Actor, actionID string) error
	Get(ctx context.Context, actor private.Actor, actionID string) (v1.ModerationAction, error)
	GetAll(ctx context.Context, actor private.Actor, limit int, offset int) ([]v1.ModerationAction, error)
}

func (s *service) Create(ctx context.Context, actor private.Actor, req v1.CreateAction) (v1.ModerationAction, error) {
	log := s.logger.With(
		slog.String("method", "Create"),
		slog.String("actionType", req.ActionType),
		slog.String("targetID", req.TargetID),
		slog.String("actorID", actor.ID),
	)

	if !constants.ActionTypes[req.ActionType] || req.ActionType == constants.ActionRevert {
		return v1.ModerationAction{}, models.NewAppError(models.ValidationErrorCode, "invalid action type")
	}
	if !constants.ReportTargetTypes[req.TargetType] {
		return v1.ModerationAction{}, models.NewAppError(models.ValidationErrorCode, "invalid target type")
	}
	if req.TargetID == "" || req.CommunityID == "" || req.ReasonCategory == "" {
		return v1.ModerationAction{}, models.NewAppError(models.ValidationErrorCode, "target, community and reason category are required")
	}

	if !actor.CanModerate(req.CommunityID) {
		return v1.ModerationAction{}, models.NewAppError(models.ForbiddenErrorCode, "not a moderator of this community")
	}

	if req.ReportID != nil {
		report, err := s.repo.GetReport(ctx, *req.ReportID)
		if err != nil {
			log.Error("failed to get report", slog.String("error", err.Error()))
			return v1.ModerationAction{}, models.NewAppError(models.InternalServerErrorCode, "")
		}
		if report == nil {
			return v1.ModerationAction{}, models.NewAppError(models.NotFoundErrorCode, "report not found")
		}
		if report.CommunityID != req.CommunityID {
			return v1.ModerationAction{}, models.NewAppError(models.ValidationErrorCode, "report belongs to another community")
		}
		if report.Status != constants.ReportPending && report.Status != constants.ReportTriaged {
			return v1.ModerationAction{}, models.NewAppError(models.ConflictErrorCode, "report is already closed")
		}
	}

	created, err := s.repo.CreateAction(ctx, db.ModerationAction{
		ReportID:       req.ReportID,
		ActorID:        actor.ID,
		TargetType:     req.TargetType,
		TargetID:       req.TargetID,
		CommunityID:    req.CommunityID,
		ActionType:     req.ActionType,
		ReasonCategory: req.ReasonCategory,
		ReasonText:     req.ReasonText,
	})
	if errors.Is(err, moderationRepo.ErrDuplicate) {
		return v1.ModerationAction{}, models.NewAppError(models.ConflictErrorCode, "identical action already recorded for this report")
	}
	if err != nil {
		log.Error("failed to create action", slog.String("error", err.Error()))
		return v1.ModerationAction{}, models.NewAppError(models.InternalServerErrorCode, "")
	}

	if req.ActionType == constants.ActionRemove {
		if err := s.content.ApplyRemoval(ctx, req.TargetType, req.TargetID); err != nil {
			// The action row is the source of truth; the removal side
			// effect is repaired out of band if the content store was
			// unreachable.
			log.Error("failed to apply content removal", slog.String("error", err.Error()))
		}
	}

	if req.ReportID != nil {
		s.closeReport(ctx, *req.ReportID, log)
	}

	s.emitter.Emit("action.created", created)

	return toAction(created), nil
}

// Revert marks a completed action reverted and records a revert entry
// next to it, keeping the punitive history append-only.
func (s *service) Revert(ctx context.Context, actor private.Actor, actionID string) error {
	log := s.logger.With(
		slog.String("method", "Revert"),
		slog.String("actionID", actionID),
		slog.String("actorID", actor.ID),
	)

	action, err := s.repo.GetAction(ctx, actionID)
	if err != nil {
		log.Error("failed to get action", slog.String("error", err.Error()))
		return models.NewAppError(models.InternalServerErrorCode, "")
	}
	if action == nil {
		return models.NewAppError(models.NotFoundErrorCode, "action not found")
	}

	if !actor.CanModerate(action.CommunityID) {
		return models.NewAppError(models.ForbiddenErrorCode, "not a moderator of this community")
	}

	reverted, err := s.repo.RevertAction(ctx, actionID)
	if err != nil {
		log.Error("failed to revert action", slog.String("error", err.Error()))
		return models.NewAppError(models.InternalServerErrorCode, "")
	}
	if reverted == nil {
		return models.NewAppError(models.ConflictErrorCode, "action is not in a revertable state")
	}

	if _, err := s.repo.CreateAction(ctx, db.ModerationAction{
		ActorID:        actor.ID,
		TargetType:     reverted.TargetType,
		TargetID:       reverted.TargetID,
		CommunityID:    reverted.CommunityID,
		ActionType:     constants.ActionRevert,
		ReasonCategory: reverted.ReasonCategory,
		ReasonText:     "revert of action " + reverted.ID,
	}); err != nil {
		log.Error("failed to record revert entry", slog.String("error", err.Error()))
	}

	s.emitter.Emit("action.reverted", reverted)

	return nil
}

func (s *service) Get(ctx context.Context, actor private.Actor, actionID string) (v1.ModerationAction, error) {
	log := s.logger.With(
		slog.String("method", "Get"),
		slog.String("actionID", actionID),
	)

	action, err := s.repo.GetAction(ctx, actionID)
	if err != nil {
		log.Error("failed to get action", slog.String("error", err.Error()))
		return v1.ModerationAction{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if action == nil {
		return v1.ModerationAction{}, models.NewAppError(models.NotFoundErrorCode, "action not found")
	}

	if !actor.CanModerate(action.CommunityID) {
		return v1.ModerationAction{}, models.NewAppError(models.ForbiddenErrorCode, "")
	}

	return toAction(*action), nil
}

func (s *service) GetAll(ctx context.Context, actor private.Actor, limit int, offset int) (actions []v1.ModerationAction, err error) {
	log := s.logger.With(slog.String("method", "GetAll"))

	dbActions, err := s.repo.GetActions(ctx, limit, offset)
	if err != nil {
		log.Error("failed to get actions", slog.String("error", err.Error()))
		return nil, models.NewAppError(models.InternalServerErrorCode, "")
	}

	for _, a := range dbActions {
		if !actor.CanModerate(a.CommunityID) {
			continue
		}
		actions = append(actions, toAction(a))
	}

	return actions, nil
}

// closeReport moves the backing report to reviewed. The CAS write can
// lose to a concurrent triage, so it retries against the fresh version.
func (s *service) closeReport(ctx context.Context, reportID string, log *slog.Logger) {
	for range closeReportAttempts {
		report, err := s.repo.GetReport(ctx, reportID)
		if err != nil {
			log.Error("failed to reload report", slog.String("error", err.Error()))
			return
		}
		if report == nil {
			return
		}
		if report.Status != constants.ReportPending && report.Status != constants.ReportTriaged {
			return
		}

		updated, err := s.repo.UpdateReport(ctx, reportID, report.Version, moderationRepo.ReportUpdate{
			Status: constants.ReportReviewed,
		})
		if err != nil {
			log.Error("failed to close report", slog.String("error", err.Error()))
			return
		}
		if updated != nil {
			s.emitter.Emit("report.reviewed", updated)
			return
		}
	}

	log.Warn("gave up closing report after repeated version conflicts", slog.String("reportID", reportID))
}

func toAction(action db.ModerationAction) v1.ModerationAction {
	return v1.ModerationAction{
		ID:             action.ID,
		ReportID:       action.ReportID,
		ActorID:        action.ActorID,
		TargetType:     action.TargetType,
		TargetID:       action.TargetID,
		CommunityID:    action.CommunityID,
		ActionType:     action.ActionType,
		ReasonCategory: action.ReasonCategory,
		ReasonText:     action.ReasonText,
		Status:         action.Status,
		CreatedAt:      uint64(action.CreatedAt.Unix()),
	}
}

func NewService(repo moderationDb, content contentStore, emitter events.Emitter, logger *slog.Logger) Actions {
	return &service{
		repo:    repo,
		content: content,
		emitter: emitter,
		logger:  logger,
	}
}
