package bans

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"community-moderation/pkg/events"
	"community-moderation/pkg/models"
	v1 "community-moderation/pkg/models/api/v1"
	"community-moderation/pkg/models/db"
	"community-moderation/pkg/models/private"
	moderationRepo "community-moderation/pkg/repositories/moderation"
)

type moderationDb interface {
	CreateBan(ctx context.Context, ban db.CommunityBan) (db.CommunityBan, error)
	GetBan(ctx context.Context, id string) (*db.CommunityBan, error)
	GetBans(ctx context.Context, limit int, offset int) ([]db.CommunityBan, error)
	GetActiveBan(ctx context.Context, communityID, bannedUserID string) (*db.CommunityBan, error)
	LiftBan(ctx context.Context, id, liftedBy string, at time.Time) (*db.CommunityBan, error)
	SweepExpiredBans(ctx context.Context) (int64, error)
}

type directory interface {
	CommunityExists(ctx context.Context, communityID string) (bool, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

type service struct {
	repo      moderationDb
	directory directory
	emitter   events.Emitter
	logger    *slog.Logger
}

type Bans interface {
	Issue(ctx context.Context, actor private.Actor, req v1.IssueBan) (v1.BanInfo, error)
	Lift(ctx context.Context, actor private.Actor, banID string) error
	Get(ctx context.Context, actor private.Actor, banID string) (v1.BanInfo, error)
	GetActive(ctx context.Context, actor private.Actor, communityID, userID string) (*v1.BanInfo, error)
	GetAll(ctx context.Context, actor private.Actor, limit int, offset int) ([]v1.BanInfo, error)
}

func (s *service) Issue(ctx context.Context, actor private.Actor, req v1.IssueBan) (v1.BanInfo, error) {
	log := s.logger.With(
		slog.String("method", "Issue"),
		slog.String("communityID", req.CommunityID),
		slog.String("bannedUserID", req.BannedUserID),
	)

	if !actor.CanModerate(req.CommunityID) {
		return v1.BanInfo{}, models.NewAppError(models.ForbiddenErrorCode, "not a moderator of this community")
	}

	var expiresAt *time.Time
	if req.IsPermanent {
		if req.ExpiresAt != 0 {
			return v1.BanInfo{}, models.NewAppError(models.ValidationErrorCode, "permanent ban cannot carry an expiry")
		}
	} else {
		if req.ExpiresAt == 0 {
			return v1.BanInfo{}, models.NewAppError(models.ValidationErrorCode, "temporary ban requires an expiry")
		}
		t := time.Unix(int64(req.ExpiresAt), 0)
		if !t.After(time.Now()) {
			return v1.BanInfo{}, models.NewAppError(models.ValidationErrorCode, "expiry must be in the future")
		}
		expiresAt = &t
	}

	exists, err := s.directory.CommunityExists(ctx, req.CommunityID)
	if err != nil {
		log.Error("failed to check community", slog.String("error", err.Error()))
		return v1.BanInfo{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if !exists {
		return v1.BanInfo{}, models.NewAppError(models.NotFoundErrorCode, "community not found")
	}

	exists, err = s.directory.UserExists(ctx, req.BannedUserID)
	if err != nil {
		log.Error("failed to check user", slog.String("error", err.Error()))
		return v1.BanInfo{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if !exists {
		return v1.BanInfo{}, models.NewAppError(models.NotFoundErrorCode, "user not found")
	}

	ban := db.CommunityBan{
		CommunityID:    req.CommunityID,
		BannedUserID:   req.BannedUserID,
		IssuedBy:       actor.ID,
		ReasonCategory: req.ReasonCategory,
		ReasonText:     req.ReasonText,
		IsPermanent:    req.IsPermanent,
		ExpiresAt:      expiresAt,
	}

	created, err := s.repo.CreateBan(ctx, ban)
	if errors.Is(err, moderationRepo.ErrDuplicate) {
		// The single-active index also holds rows that expired but were
		// not swept yet. Those do not count as active, so sweep and try
		// once more before conceding the conflict.
		if _, serr := s.repo.SweepExpiredBans(ctx); serr != nil {
			log.Error("failed to sweep expired bans", slog.String("error", serr.Error()))
			return v1.BanInfo{}, models.NewAppError(models.InternalServerErrorCode, "")
		}

		created, err = s.repo.CreateBan(ctx, ban)
		if errors.Is(err, moderationRepo.ErrDuplicate) {
			return v1.BanInfo{}, models.NewAppError(models.ConflictErrorCode, "user already has an active ban in this community")
		}
	}
	if err != nil {
		log.Error("failed to create ban", slog.String("error", err.Error()))
		return v1.BanInfo{}, models.NewAppError(models.InternalServerErrorCode, "")
	}

	s.emitter.Emit("ban.issued", created)

	return toBanInfo(created, time.Now()), nil
}

func (s *service) Lift(ctx context.Context, actor private.Actor, banID string) error {
	log := s.logger.With(
		slog.String("method", "Lift"),
		slog.String("banID", banID),
	)

	ban, err := s.repo.GetBan(ctx, banID)
	if err != nil {
		log.Error("failed to get ban", slog.String("error", err.Error()))
		return models.NewAppError(models.InternalServerErrorCode, "")
	}
	if ban == nil {
		return models.NewAppError(models.NotFoundErrorCode, "ban not found")
	}

	if !actor.CanModerate(ban.CommunityID) {
		return models.NewAppError(models.ForbiddenErrorCode, "not a moderator of this community")
	}

	lifted, err := s.repo.LiftBan(ctx, banID, actor.ID, time.Now())
	if err != nil {
		log.Error("failed to lift ban", slog.String("error", err.Error()))
		return models.NewAppError(models.InternalServerErrorCode, "")
	}
	if lifted == nil {
		// Lifting is a deliberate act on a live ban, not an idempotent
		// cleanup, so an inactive or expired ban is a conflict.
		return models.NewAppError(models.ConflictErrorCode, "ban is not active")
	}

	s.emitter.Emit("ban.lifted", lifted)

	return nil
}

func (s *service) Get(ctx context.Context, actor private.Actor, banID string) (v1.BanInfo, error) {
	log := s.logger.With(
		slog.String("method", "Get"),
		slog.String("banID", banID),
	)

	ban, err := s.repo.GetBan(ctx, banID)
	if err != nil {
		log.Error("failed to get ban", slog.String("error", err.Error()))
		return v1.BanInfo{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if ban == nil {
		return v1.BanInfo{}, models.NewAppError(models.NotFoundErrorCode, "ban not found")
	}

	if !actor.CanModerate(ban.CommunityID) && actor.ID != ban.BannedUserID {
		return v1.BanInfo{}, models.NewAppError(models.ForbiddenErrorCode, "")
	}

	return toBanInfo(*ban, time.Now()), nil
}

// GetActive answers whether a user is effectively banned in a
// community right now. This is the enforcement read path, so it goes
// through the cached lookup.
func (s *service) GetActive(ctx context.Context, actor private.Actor, communityID, userID string) (*v1.BanInfo, error) {
	log := s.logger.With(
		slog.String("method", "GetActive"),
		slog.String("communityID", communityID),
		slog.String("userID", userID),
	)

	if communityID == "" || userID == "" {
		return nil, models.NewAppError(models.ValidationErrorCode, "community_id and user_id are required")
	}

	if !actor.CanModerate(communityID) && actor.ID != userID {
		return nil, models.NewAppError(models.ForbiddenErrorCode, "")
	}

	ban, err := s.repo.GetActiveBan(ctx, communityID, userID)
	if err != nil {
		log.Error("failed to get active ban", slog.String("error", err.Error()))
		return nil, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if ban == nil || !ban.EffectiveActive(time.Now()) {
		return nil, nil
	}

	info := toBanInfo(*ban, time.Now())
	return &info, nil
}

func (s *service) GetAll(ctx context.Context, actor private.Actor, limit int, offset int) (bans []v1.BanInfo, err error) {
	log := s.logger.With(slog.String("method", "GetAll"))

	dbBans, err := s.repo.GetBans(ctx, limit, offset)
	if err != nil {
		log.Error("failed to get bans", slog.String("error", err.Error()))
		return nil, models.NewAppError(models.InternalServerErrorCode, "")
	}

	now := time.Now()
	for _, b := range dbBans {
		if !actor.CanModerate(b.CommunityID) {
			continue
		}
		bans = append(bans, toBanInfo(b, now))
	}

	return bans, nil
}

// toBanInfo maps a row to the API shape. IsActive is the derived
// effective state, never the raw column.
func toBanInfo(ban db.CommunityBan, now time.Time) v1.BanInfo {
	info := v1.BanInfo{
		ID:             ban.ID,
		CommunityID:    ban.CommunityID,
		BannedUserID:   ban.BannedUserID,
		IssuedBy:       ban.IssuedBy,
		ReasonCategory: ban.ReasonCategory,
		ReasonText:     ban.ReasonText,
		IsPermanent:    ban.IsPermanent,
		IsActive:       ban.EffectiveActive(now),
		LiftedBy:       ban.LiftedBy,
		CreatedAt:      uint64(ban.CreatedAt.Unix()),
	}

	if ban.ExpiresAt != nil {
		info.ExpiresAt = uint64(ban.ExpiresAt.Unix())
	}
	if ban.LiftedAt != nil {
		info.LiftedAt = uint64(ban.LiftedAt.Unix())
	}

	return info
}

func NewService(repo moderationDb, directory directory, emitter events.Emitter, logger *slog.Logger) Bans {
	return &service{
		repo:      repo,
		directory: directory,
		emitter:   emitter,
		logger:    logger,
	}
}
