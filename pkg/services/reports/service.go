package reports

import (
	"context"
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
	CreateReport(ctx context.Context, report db.Report) (db.Report, error)
	GetReport(ctx context.Context, id string) (*db.Report, error)
	GetReports(ctx context.Context, limit int, offset int) ([]db.Report, error)
	FindOpenReport(ctx context.Context, reporterID, targetType, targetID string, since time.Time) (*db.Report, error)
	UpdateReport(ctx context.Context, id string, expectedVersion int64, update moderationRepo.ReportUpdate) (*db.Report, error)
}

type directory interface {
	CommunityExists(ctx context.Context, communityID string) (bool, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	IsMember(ctx context.Context, communityID, userID string) (bool, error)
}

type contentStore interface {
	Exists(ctx context.Context, targetType, targetID string) (bool, error)
}

type service struct {
	repo      moderationDb
	directory directory
	content   contentStore
	emitter   events.Emitter
	cooldown  time.Duration
	logger    *slog.Logger
}

type Reports interface {
	Create(ctx context.Context, reporterID *string, req v1.CreateReport) (v1.Report, error)
	Triage(ctx context.Context, actor private.Actor, reportID string, req v1.TriageReport) (v1.Report, error)
	Dismiss(ctx context.Context, actor private.Actor, reportID string, expectedVersion int64) (v1.Report, error)
	Get(ctx context.Context, actor private.Actor, reportID string) (v1.Report, error)
	GetAll(ctx context.Context, actor private.Actor, limit int, offset int) ([]v1.Report, error)
}

func (s *service) Create(ctx context.Context, reporterID *string, req v1.CreateReport) (v1.Report, error) {
	log := s.logger.With(
		slog.String("method", "Create"),
		slog.String("targetType", req.TargetType),
		slog.String("targetID", req.TargetID),
	)

	if !constants.ReportTargetTypes[req.TargetType] {
		return v1.Report{}, models.NewAppError(models.ValidationErrorCode, "invalid target type")
	}
	if req.TargetID == "" || req.CommunityID == "" || req.Category == "" {
		return v1.Report{}, models.NewAppError(models.ValidationErrorCode, "target, community and category are required")
	}

	exists, err := s.directory.CommunityExists(ctx, req.CommunityID)
	if err != nil {
		log.Error("failed to check community", slog.String("error", err.Error()))
		return v1.Report{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if !exists {
		return v1.Report{}, models.NewAppError(models.NotFoundErrorCode, "community not found")
	}

	if req.TargetType == constants.TargetUser {
		exists, err = s.directory.UserExists(ctx, req.TargetID)
	} else {
		exists, err = s.content.Exists(ctx, req.TargetType, req.TargetID)
	}
	if err != nil {
		log.Error("failed to check target", slog.String("error", err.Error()))
		return v1.Report{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if !exists {
		return v1.Report{}, models.NewAppError(models.NotFoundErrorCode, "report target not found")
	}

	// A user can only be reported within a community they belong to.
	if req.TargetType == constants.TargetUser {
		member, err := s.directory.IsMember(ctx, req.CommunityID, req.TargetID)
		if err != nil {
			log.Error("failed to check membership", slog.String("error", err.Error()))
			return v1.Report{}, models.NewAppError(models.InternalServerErrorCode, "")
		}
		if !member {
			return v1.Report{}, models.NewAppError(models.ValidationErrorCode, "user is not a member of this community")
		}
	}

	// Anonymous reports skip the cooldown: there is no reporter to
	// dedupe against.
	if reporterID != nil {
		open, err := s.repo.FindOpenReport(ctx, *reporterID, req.TargetType, req.TargetID, time.Now().Add(-s.cooldown))
		if err != nil {
			log.Error("failed to check for open report", slog.String("error", err.Error()))
			return v1.Report{}, models.NewAppError(models.InternalServerErrorCode, "")
		}
		if open != nil {
			return v1.Report{}, models.NewAppError(models.ConflictErrorCode, "target already reported recently")
		}
	}

	severity, ok := constants.CategorySeverity[req.Category]
	if !ok {
		severity = constants.SeverityLow
	}

	created, err := s.repo.CreateReport(ctx, db.Report{
		ReporterID:  reporterID,
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		CommunityID: req.CommunityID,
		Category:    req.Category,
		ReasonText:  req.ReasonText,
		Severity:    severity,
	})
	if err != nil {
		log.Error("failed to create report", slog.String("error", err.Error()))
		return v1.Report{}, models.NewAppError(models.InternalServerErrorCode, "")
	}

	s.emitter.Emit("report.created", created)

	return toReport(created), nil
}

// Triage is the serialization point for racing moderators: the write
// only lands when expectedVersion still matches, so of two concurrent
// calls with the same token exactly one wins.
func (s *service) Triage(ctx context.Context, actor private.Actor, reportID string, req v1.TriageReport) (v1.Report, error) {
	log := s.logger.With(
		slog.String("method", "Triage"),
		slog.String("reportID", reportID),
		slog.String("actorID", actor.ID),
	)

	if !constants.Priorities[req.Priority] {
		return v1.Report{}, models.NewAppError(models.ValidationErrorCode, "invalid priority")
	}
	if req.Severity < constants.SeverityLow || req.Severity > constants.SeverityCritical {
		return v1.Report{}, models.NewAppError(models.ValidationErrorCode, "invalid severity")
	}

	if err := s.openReportForModerator(ctx, actor, reportID, log); err != nil {
		return v1.Report{}, err
	}

	updated, err := s.repo.UpdateReport(ctx, reportID, req.ExpectedVersion, moderationRepo.ReportUpdate{
		Status:   constants.ReportTriaged,
		Priority: &req.Priority,
		Severity: &req.Severity,
	})
	if err != nil {
		log.Error("failed to triage report", slog.String("error", err.Error()))
		return v1.Report{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if updated == nil {
		return v1.Report{}, models.NewAppError(models.ConflictErrorCode, "report version is stale")
	}

	s.emitter.Emit("report.triaged", updated)

	return toReport(*updated), nil
}

func (s *service) Dismiss(ctx context.Context, actor private.Actor, reportID string, expectedVersion int64) (v1.Report, error) {
	log := s.logger.With(
		slog.String("method", "Dismiss"),
		slog.String("reportID", reportID),
		slog.String("actorID", actor.ID),
	)

	if err := s.openReportForModerator(ctx, actor, reportID, log); err != nil {
		return v1.Report{}, err
	}

	updated, err := s.repo.UpdateReport(ctx, reportID, expectedVersion, moderationRepo.ReportUpdate{
		Status: constants.ReportDismissed,
	})
	if err != nil {
		log.Error("failed to dismiss report", slog.String("error", err.Error()))
		return v1.Report{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if updated == nil {
		return v1.Report{}, models.NewAppError(models.ConflictErrorCode, "report version is stale")
	}

	s.emitter.Emit("report.dismissed", updated)

	return toReport(*updated), nil
}

func (s *service) Get(ctx context.Context, actor private.Actor, reportID string) (v1.Report, error) {
	log := s.logger.With(
		slog.String("method", "Get"),
		slog.String("reportID", reportID),
	)

	report, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		log.Error("failed to get report", slog.String("error", err.Error()))
		return v1.Report{}, models.NewAppError(models.InternalServerErrorCode, "")
	}
	if report == nil {
		return v1.Report{}, models.NewAppError(models.NotFoundErrorCode, "report not found")
	}

	if !actor.CanModerate(report.CommunityID) {
		return v1.Report{}, models.NewAppError(models.ForbiddenErrorCode, "")
	}

	return toReport(*report), nil
}

func (s *service) GetAll(ctx context.Context, actor private.Actor, limit int, offset int) (reports []v1.Report, err error) {
	log := s.logger.With(slog.String("method", "GetAll"))

	dbReports, err := s.repo.GetReports(ctx, limit, offset)
	if err != nil {
		log.Error("failed to get reports", slog.String("error", err.Error()))
		return nil, models.NewAppError(models.InternalServerErrorCode, "")
	}

	for _, r := range dbReports {
		if !actor.CanModerate(r.CommunityID) {
			continue
		}
		reports = append(reports, toReport(r))
	}

	return reports, nil
}

// openReportForModerator loads the report and checks that it is still
// open and that the actor is scoped to its community.
func (s *service) openReportForModerator(ctx context.Context, actor private.Actor, reportID string, log *slog.Logger) error {
	report, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		log.Error("failed to get report", slog.String("error", err.Error()))
		return models.NewAppError(models.InternalServerErrorCode, "")
	}
	if report == nil {
		return models.NewAppError(models.NotFoundErrorCode, "report not found")
	}

	if !actor.CanModerate(report.CommunityID) {
		return models.NewAppError(models.ForbiddenErrorCode, "not a moderator of this community")
	}

	if report.Status != constants.ReportPending && report.Status != constants.ReportTriaged {
		return models.NewAppError(models.ConflictErrorCode, "report is already closed")
	}

	return nil
}

func toReport(report db.Report) v1.Report {
	return v1.Report{
		ID:          report.ID,
		ReporterID:  report.ReporterID,
		TargetType:  report.TargetType,
		TargetID:    report.TargetID,
		CommunityID: report.CommunityID,
		Category:    report.Category,
		ReasonText:  report.ReasonText,
		Status:      report.Status,
		Severity:    report.Severity,
		Priority:    report.Priority,
		Version:     report.Version,
		CreatedAt:   uint64(report.CreatedAt.Unix()),
		UpdatedAt:   uint64(report.UpdatedAt.Unix()),
	}
}

func NewService(repo moderationDb, directory directory, content contentStore, emitter events.Emitter, cooldown time.Duration, logger *slog.Logger) Reports {
	return &service{
		repo:      repo,
		directory: directory,
		content:   content,
		emitter:   emitter,
		cooldown:  cooldown,
		logger:    logger,
	}
}
