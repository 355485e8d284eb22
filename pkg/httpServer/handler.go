package httpServer

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	v1 "community-moderation/pkg/models/api/v1"
	"community-moderation/pkg/models/private"
)

type reports interface {
	Create(ctx context.Context, reporterID *string, req v1.CreateReport) (v1.Report, error)
	Triage(ctx context.Context, actor private.Actor, reportID string, req v1.TriageReport) (v1.Report, error)
	Dismiss(ctx context.Context, actor private.Actor, reportID string, expectedVersion int64) (v1.Report, error)
	Get(ctx context.Context, actor private.Actor, reportID string) (v1.Report, error)
	GetAll(ctx context.Context, actor private.Actor, limit int, offset int) ([]v1.Report, error)
}

type actions interface {
	Create(ctx context.Context, actor private.Actor, req v1.CreateAction) (v1.ModerationAction, error)
	Get(ctx context.Context, actor private.Actor, actionID string) (v1.ModerationAction, error)
	GetAll(ctx context.Context, actor private.Actor, limit int, offset int) ([]v1.ModerationAction, error)
}

type bans interface {
	Issue(ctx context.Context, actor private.Actor, req v1.IssueBan) (v1.BanInfo, error)
	Lift(ctx context.Context, actor private.Actor, banID string) error
	Get(ctx context.Context, actor private.Actor, banID string) (v1.BanInfo, error)
	GetActive(ctx context.Context, actor private.Actor, communityID, userID string) (*v1.BanInfo, error)
	GetAll(ctx context.Context, actor private.Actor, limit int, offset int) ([]v1.BanInfo, error)
}

type appeals interface {
	Submit(ctx context.Context, actor private.Actor, req v1.SubmitAppeal) (v1.Appeal, error)
	Review(ctx context.Context, actor private.Actor, appealID string, req v1.ReviewAppeal) (v1.Appeal, error)
	Escalate(ctx context.Context, actor private.Actor, appealID string) (v1.Appeal, error)
	AdminResolve(ctx context.Context, actor private.Actor, appealID string, req v1.ReviewAppeal) (v1.Appeal, error)
	Get(ctx context.Context, actor private.Actor, appealID string) (v1.Appeal, error)
	GetAll(ctx context.Context, actor private.Actor, limit int, offset int) ([]v1.Appeal, error)
}

type identityResolver interface {
	Resolve(ctx context.Context, token string) (private.Actor, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	server    *fiber.App
	logger    *slog.Logger
	reports   reports
	actions   actions
	bans      bans
	appeals   appeals
	identity  identityResolver
	namespace string
	subsystem string
}

func New(
	server *fiber.App,
	reports reports,
	actions actions,
	bans bans,
	appeals appeals,
	identity identityResolver,
	namespace string,
	subsystem string,
	logger *slog.Logger,
) *handler {
	return &handler{
		server:    server,
		reports:   reports,
		actions:   actions,
		bans:      bans,
		appeals:   appeals,
		identity:  identity,
		namespace: namespace,
		subsystem: subsystem,
		logger:    logger,
	}
}
