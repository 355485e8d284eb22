package appeals

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"community-moderation/pkg/constants"
	"community-moderation/pkg/events"
	"community-moderation/pkg/models"
	v1 "community-moderation/pkg/models/api/v1"
	"community-moderation/pkg/models/db"
	"community-moderation/pkg/models/private"
	moderationRepo "community-moderation/pkg/repositories/moderation"
)

type moderationDb interface {
	CreateAppeal(ctx context.Context, appeal db.ModerationAppeal) (db.ModerationAppeal, error)
	GetAppeal(ctx context.Context, id string) (*db.ModerationAppeal, error)
	GetAppeals(ctx context.Context, limit int, offset int) ([]db.ModerationAppeal, error)
	FindOpenAppeal(ctx context.Context, appellantID, targetType, targetID string) (*db.ModerationAppeal, error)
	ReviewAppeal(ctx context.Context, id, decision, explanation, reviewerID string, resolvedAt *time.Time, reversalPending bool) (*db.ModerationAppeal, error)
	EscalateAppeal(ctx context.Context, id string, at time.Time) (*db.ModerationAppeal, error)
	AdminResolveAppeal(ctx context.Context, id, decision, explanation, adminID string, at time.Time, reversalPending bool) (*db.ModerationAppeal, error)
	ClearReversal(ctx context.Context, id string) error
	GetBan(ctx context.Context, id string) (*db.CommunityBan, error)
	GetAction(ctx context.Context, id string) (*db.ModerationAction, error)
}

type banService interface {
	Lift(ctx context.Context, actor private.Actor, banID string) error
}

type actionService interface {
	Revert(ctx context.Context, actor private.Actor, actionID string) error
}

type service struct {
	repo    moderationDb
	bans    banService
	actions actionService
	emitter events.Emitter
	logger  *slog.Logger
}

type Appeals interface {
	Submit(ctx context.Context, actor private.Actor, req v1.SubmitAppeal) (v1.Appeal, error)
	Review(ctx context.Context, actor private.Actor, appealID string, req v1.ReviewAppeal) (v1.Appeal, error)
	Escalate(ctx context.Context, actor private.Actor, appealID string) (v1.Appeal, error)
	AdminResolve(ctx context.Context, actor private.Actor, appealID string, req v1.ReviewAppeal) (v1.Appeal, error)
	Get(ctx context.Context, actor private.Actor, appealID string) (v1.Appeal, error)
	GetAll(ctx context.Context, actor private.Actor, limit int, offset int) ([]v1.Appeal, error)
}

func (s *service) Submit(ctx context.Context, actor private.Actor, req v1.SubmitAppeal) (v1.Appeal, error) {
	log := s.logger.With(
		slog.String("method", "Submit"),
		slog.String("targetType", req.TargetType),
		slog.String("targetID", req.TargetID),
		slog.String("appellantID", actor.ID),
	)

	if !constants.AppealTargetTypes[req.TargetType] {
		return v1.Appeal{}, models.NewAppError(models.ValidationErrorCode, "invalid appeal target type")
	}
	if req.TargetID == "" {
		return v1.Appeal{}, models.NewAppError(models.ValidationErrorCode, "target is required")
	}

	switch req.TargetType {
	case constants.AppealTargetBan:
		ban, err := s.repo.GetBan(ctx, req.TargetID)
		if err != nil {
			log.Error("failed to get ban", slog.String("error", err.Error()))
			return v1.Appeal{}, models.NewAppError(models.InternalServerErrorCode, "")
		}
		if ban == nil {
			return v1.Appeal{}, models.NewAppError(models.NotFoundErrorCode, "ban not found")
		}
		if ban.BannedUserID != actor.ID {
			return v1.Appeal{}, models.NewAppError(models.ForbiddenErrorCode, "only the banned user may appeal")
		}
		if !ban.EffectiveActive(time.Now()) {
			return v1.Appeal{}, models.NewAppError(models.ConflictErrorCode, "ban is no longer in effect")
		}
	case constants.AppealTargetAction:
		action, err := s.repo.GetAction(ctx, req.TargetID)
		if err != nil {
			log.Error("failed to get action", slog.String("error", err.Error()))
			return v1.Appeal{}, models.NewAppError(models.InternalServerErrorCode, "")
		}
		if action == nil {
			return v1.Appeal{}, models.NewAppError(models.NotFoundErrorCode, "action not found")
		}
		if action.TargetType == constants.TargetUser && action.TargetID != actor.ID {
			return v1.Appeal{}, models.NewAppError(models.ForbiddenErrorCode, "only the affected user may appeal")
		}
		if action.Status != constants.ActionCompleted {
			return v1.Appeal{}, models.NewAppError(models.ConflictErrorCode, "action is no longer in effect")
		}
	}

	open, err := s.repo.FindOpenAppeal(ctx, actor.ID, req.TargetType, req.TargetID)
	if err != nil {
		log.Error("failed to check for open appeal", slog.String("error", err.Error()))
		return v1.Appeal{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if open != nil {
		return v1.Appeal{}, models.NewAppError(models.ConflictErrorCode, "an open appeal for this target already exists")
	}

	created, err := s.repo.CreateAppeal(ctx, db.ModerationAppeal{
		AppellantID: actor.ID,
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		AppealText:  req.AppealText,
	})
	if errors.Is(err, moderationRepo.ErrDuplicate) {
		return v1.Appeal{}, models.NewAppError(models.ConflictErrorCode, "an open appeal for this target already exists")
	}
	if err != nil {
		log.Error("failed to create appeal", slog.String("error", err.Error()))
		return v1.Appeal{}, models.NewAppError(models.InternalServerErrorCode, "")
	}

	s.emitter.Emit("appeal.submitted", created)

	return toAppeal(created), nil
}

// Review applies the community-level decision. An appeal whose target
// ban was lifted independently can still be reviewed for the record;
// the reversal step then finds nothing left to undo and succeeds.
func (s *service) Review(ctx context.Context, actor private.Actor, appealID string, req v1.ReviewAppeal) (v1.Appeal, error) {
	log := s.logger.With(
		slog.String("method", "Review"),
		slog.String("appealID", appealID),
		slog.String("reviewerID", actor.ID),
	)

	if !constants.AppealDecisions[req.Decision] {
		return v1.Appeal{}, models.NewAppError(models.ValidationErrorCode, "invalid decision")
	}

	appeal, err := s.getAppeal(ctx, appealID, log)
	if err != nil {
		return v1.Appeal{}, err
	}

	communityID, err := s.targetCommunity(ctx, appeal, log)
	if err != nil {
		return v1.Appeal{}, err
	}
	if !actor.CanModerate(communityID) {
		return v1.Appeal{}, models.NewAppError(models.ForbiddenErrorCode, "not a moderator of this community")
	}

	var resolvedAt *time.Time
	overturned := req.Decision == constants.AppealOverturned
	if overturned {
		now := time.Now()
		resolvedAt = &now
	}

	updated, err := s.repo.ReviewAppeal(ctx, appealID, req.Decision, req.Explanation, actor.ID, resolvedAt, overturned)
	if err != nil {
		log.Error("failed to review appeal", slog.String("error", err.Error()))
		return v1.Appeal{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if updated == nil {
		return v1.Appeal{}, models.NewAppError(models.ConflictErrorCode, "appeal is not awaiting community review")
	}

	s.emitter.Emit("appeal.reviewed", updated)

	if overturned {
		updated = s.reverse(ctx, actor, updated, log)
		s.emitter.Emit("appeal.resolved", updated)
	}

	return toAppeal(*updated), nil
}

// Escalate promotes a community-level loss to platform-admin review.
// The transition happens at most once; repeating it is a conflict even
// though the end state already holds.
func (s *service) Escalate(ctx context.Context, actor private.Actor, appealID string) (v1.Appeal, error) {
	log := s.logger.With(
		slog.String("method", "Escalate"),
		slog.String("appealID", appealID),
		slog.String("actorID", actor.ID),
	)

	appeal, err := s.getAppeal(ctx, appealID, log)
	if err != nil {
		return v1.Appeal{}, err
	}

	if appeal.AppellantID != actor.ID {
		return v1.Appeal{}, models.NewAppError(models.ForbiddenErrorCode, "only the appellant may escalate")
	}

	updated, err := s.repo.EscalateAppeal(ctx, appealID, time.Now())
	if err != nil {
		log.Error("failed to escalate appeal", slog.String("error", err.Error()))
		return v1.Appeal{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if updated == nil {
		current, err := s.getAppeal(ctx, appealID, log)
		if err != nil {
			return v1.Appeal{}, err
		}
		if current.IsEscalated {
			return v1.Appeal{}, models.NewAppError(models.ConflictErrorCode, "appeal is already escalated")
		}
		return v1.Appeal{}, models.NewAppError(models.ConflictErrorCode, "only an upheld appeal can be escalated")
	}

	s.emitter.Emit("appeal.escalated", updated)

	return toAppeal(*updated), nil
}

func (s *service) AdminResolve(ctx context.Context, actor private.Actor, appealID string, req v1.ReviewAppeal) (v1.Appeal, error) {
	log := s.logger.With(
		slog.String("method", "AdminResolve"),
		slog.String("appealID", appealID),
		slog.String("adminID", actor.ID),
	)

	if !actor.PlatformAdmin {
		return v1.Appeal{}, models.NewAppError(models.ForbiddenErrorCode, "platform admin required")
	}
	if !constants.AppealDecisions[req.Decision] {
		return v1.Appeal{}, models.NewAppError(models.ValidationErrorCode, "invalid decision")
	}

	if _, err := s.getAppeal(ctx, appealID, log); err != nil {
		return v1.Appeal{}, err
	}

	overturned := req.Decision == constants.AppealOverturned
	updated, err := s.repo.AdminResolveAppeal(ctx, appealID, req.Decision, req.Explanation, actor.ID, time.Now(), overturned)
	if err != nil {
		log.Error("failed to resolve appeal", slog.String("error", err.Error()))
		return v1.Appeal{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if updated == nil {
		return v1.Appeal{}, models.NewAppError(models.ConflictErrorCode, "appeal is not awaiting admin review")
	}

	if overturned {
		updated = s.reverse(ctx, actor, updated, log)
	}

	s.emitter.Emit("appeal.resolved", updated)

	return toAppeal(*updated), nil
}

func (s *service) Get(ctx context.Context, actor private.Actor, appealID string) (v1.Appeal, error) {
	log := s.logger.With(
		slog.String("method", "Get"),
		slog.String("appealID", appealID),
	)

	appeal, err := s.getAppeal(ctx, appealID, log)
	if err != nil {
		return v1.Appeal{}, err
	}

	if appeal.AppellantID != actor.ID {
		communityID, err := s.targetCommunity(ctx, appeal, log)
		if err != nil {
			return v1.Appeal{}, err
		}
		if !actor.CanModerate(communityID) {
			return v1.Appeal{}, models.NewAppError(models.ForbiddenErrorCode, "")
		}
	}

	return toAppeal(*appeal), nil
}

func (s *service) GetAll(ctx context.Context, actor private.Actor, limit int, offset int) (appeals []v1.Appeal, err error) {
	log := s.logger.With(slog.String("method", "GetAll"))

	dbAppeals, err := s.repo.GetAppeals(ctx, limit, offset)
	if err != nil {
		log.Error("failed to get appeals", slog.String("error", err.Error()))
		return nil, models.NewAppError(models.InternalServerErrorCode, "")
	}

	for _, a := range dbAppeals {
		if a.AppellantID != actor.ID {
			communityID, err := s.targetCommunity(ctx, &a, log)
			if err != nil || !actor.CanModerate(communityID) {
				continue
			}
		}
		appeals = append(appeals, toAppeal(a))
	}

	return appeals, nil
}

// reverse undoes the underlying ban or action after an overturn. The
// decision write already happened; a failure here leaves the appeal
// flagged reversal_pending for the retry worker instead of rolling
// anything back.
func (s *service) reverse(ctx context.Context, actor private.Actor, appeal *db.ModerationAppeal, log *slog.Logger) *db.ModerationAppeal {
	var err error
	switch appeal.TargetType {
	case constants.AppealTargetBan:
		err = s.bans.Lift(ctx, actor, appeal.TargetID)
	case constants.AppealTargetAction:
		err = s.actions.Revert(ctx, actor, appeal.TargetID)
	}

	// An already-lifted ban or already-reverted action means there is
	// nothing left to undo; the overturn still counts as reversed.
	if err != nil && !models.IsConflict(err) {
		log.Error("reversal failed, leaving appeal flagged for retry",
			slog.String("appealID", appeal.ID),
			slog.String("error", err.Error()),
		)
		return appeal
	}

	if err := s.repo.ClearReversal(ctx, appeal.ID); err != nil {
		log.Error("failed to clear reversal flag", slog.String("error", err.Error()))
		return appeal
	}

	cleared := *appeal
	cleared.ReversalPending = false
	cleared.Version++
	return &cleared
}

func (s *service) getAppeal(ctx context.Context, appealID string, log *slog.Logger) (*db.ModerationAppeal, error) {
	appeal, err := s.repo.GetAppeal(ctx, appealID)
	if err != nil {
		log.Error("failed to get appeal", slog.String("error", err.Error()))
		return nil, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if appeal == nil {
		return nil, models.NewAppError(models.NotFoundErrorCode, "appeal not found")
	}

	return appeal, nil
}

// targetCommunity resolves which community's moderators own the appeal.
func (s *service) targetCommunity(ctx context.Context, appeal *db.ModerationAppeal, log *slog.Logger) (string, error) {
	switch appeal.TargetType {
	case constants.AppealTargetBan:
		ban, err := s.repo.GetBan(ctx, appeal.TargetID)
		if err != nil {
			log.Error("failed to get ban", slog.String("error", err.Error()))
			return "", models.NewAppError(models.InternalServerErrorCode, "")
		}
		if ban == nil {
			return "", models.NewAppError(models.NotFoundErrorCode, "ban not found")
		}
		return ban.CommunityID, nil
	case constants.AppealTargetAction:
		action, err := s.repo.GetAction(ctx, appeal.TargetID)
		if err != nil {
			log.Error("failed to get action", slog.String("error", err.Error()))
			return "", models.NewAppError(models.InternalServerErrorCode, "")
		}
		if action == nil {
			return "", models.NewAppError(models.NotFoundErrorCode, "action not found")
		}
		return action.CommunityID, nil
	}

	return "", models.NewAppError(models.InternalServerErrorCode, "")
}

func toAppeal(appeal db.ModerationAppeal) v1.Appeal {
	resp := v1.Appeal{
		ID:                  appeal.ID,
		AppellantID:         appeal.AppellantID,
		TargetType:          appeal.TargetType,
		TargetID:            appeal.TargetID,
		AppealText:          appeal.AppealText,
		Status:              appeal.Status,
		ReviewedBy:          appeal.ReviewedBy,
		DecisionExplanation: appeal.DecisionExplanation,
		IsEscalated:         appeal.IsEscalated,
		ReversalPending:     appeal.ReversalPending,
		Version:             appeal.Version,
		CreatedAt:           uint64(appeal.CreatedAt.Unix()),
		UpdatedAt:           uint64(appeal.UpdatedAt.Unix()),
	}

	if appeal.EscalatedAt != nil {
		resp.EscalatedAt = uint64(appeal.EscalatedAt.Unix())
	}
	if appeal.ResolvedAt != nil {
		resp.ResolvedAt = uint64(appeal.ResolvedAt.Unix())
	}

	return resp
}

func NewService(repo moderationDb, bans banService, actions actionService, emitter events.Emitter, logger *slog.Logger) Appeals {
	return &service{
		repo:    repo,
		bans:    bans,
		actions: actions,
		emitter: emitter,
		logger:  logger,
	}
}
