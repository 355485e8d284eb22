package moderation

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"community-moderation/pkg/models/db"
)

type metricsMiddleware struct {
	reqCount    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
	repo        Repository
}

func (m *metricsMiddleware) track(method string, err error, s time.Time) {
	labels := []string{
		method, strconv.FormatBool(err != nil),
	}
	m.reqCount.WithLabelValues(labels...).Add(1)
	m.reqDuration.WithLabelValues(labels...).Observe(time.Since(s).Seconds())
}

func (m *metricsMiddleware) EnsureSchema(ctx context.Context) (err error) {
	defer func(s time.Time) { m.track("EnsureSchema", err, s) }(time.Now())
	return m.repo.EnsureSchema(ctx)
}

func (m *metricsMiddleware) CreateReport(ctx context.Context, report db.Report) (created db.Report, err error) {
	defer func(s time.Time) { m.track("CreateReport", err, s) }(time.Now())
	return m.repo.CreateReport(ctx, report)
}

func (m *metricsMiddleware) GetReport(ctx context.Context, id string) (report *db.Report, err error) {
	defer func(s time.Time) { m.track("GetReport", err, s) }(time.Now())
	return m.repo.GetReport(ctx, id)
}

func (m *metricsMiddleware) GetReports(ctx context.Context, limit int, offset int) (reports []db.Report, err error) {
	defer func(s time.Time) { m.track("GetReports", err, s) }(time.Now())
	return m.repo.GetReports(ctx, limit, offset)
}

func (m *metricsMiddleware) FindOpenReport(ctx context.Context, reporterID, targetType, targetID string, since time.Time) (report *db.Report, err error) {
	defer func(s time.Time) { m.track("FindOpenReport", err, s) }(time.Now())
	return m.repo.FindOpenReport(ctx, reporterID, targetType, targetID, since)
}

func (m *metricsMiddleware) UpdateReport(ctx context.Context, id string, expectedVersion int64, update ReportUpdate) (report *db.Report, err error) {
	defer func(s time.Time) { m.track("UpdateReport", err, s) }(time.Now())
	return m.repo.UpdateReport(ctx, id, expectedVersion, update)
}

func (m *metricsMiddleware) CreateAction(ctx context.Context, action db.ModerationAction) (created db.ModerationAction, err error) {
	defer func(s time.Time) { m.track("CreateAction", err, s) }(time.Now())
	return m.repo.CreateAction(ctx, action)
}

func (m *metricsMiddleware) GetAction(ctx context.Context, id string) (action *db.ModerationAction, err error) {
	defer func(s time.Time) { m.track("GetAction", err, s) }(time.Now())
	return m.repo.GetAction(ctx, id)
}

func (m *metricsMiddleware) GetActions(ctx context.Context, limit int, offset int) (actions []db.ModerationAction, err error) {
	defer func(s time.Time) { m.track("GetActions", err, s) }(time.Now())
	return m.repo.GetActions(ctx, limit, offset)
}

func (m *metricsMiddleware) RevertAction(ctx context.Context, id string) (action *db.ModerationAction, err error) {
	defer func(s time.Time) { m.track("RevertAction", err, s) }(time.Now())
	return m.repo.RevertAction(ctx, id)
}

func (m *metricsMiddleware) CreateBan(ctx context.Context, ban db.CommunityBan) (created db.CommunityBan, err error) {
	defer func(s time.Time) { m.track("CreateBan", err, s) }(time.Now())
	return m.repo.CreateBan(ctx, ban)
}

func (m *metricsMiddleware) GetBan(ctx context.Context, id string) (ban *db.CommunityBan, err error) {
	defer func(s time.Time) { m.track("GetBan", err, s) }(time.Now())
	return m.repo.GetBan(ctx, id)
}

func (m *metricsMiddleware) GetBans(ctx context.Context, limit int, offset int) (bans []db.CommunityBan, err error) {
	defer func(s time.Time) { m.track("GetBans", err, s) }(time.Now())
	return m.repo.GetBans(ctx, limit, offset)
}

func (m *metricsMiddleware) GetActiveBan(ctx context.Context, communityID, bannedUserID string) (ban *db.CommunityBan, err error) {
	defer func(s time.Time) { m.track("GetActiveBan", err, s) }(time.Now())
	return m.repo.GetActiveBan(ctx, communityID, bannedUserID)
}

func (m *metricsMiddleware) LiftBan(ctx context.Context, id, liftedBy string, at time.Time) (ban *db.CommunityBan, err error) {
	defer func(s time.Time) { m.track("LiftBan", err, s) }(time.Now())
	return m.repo.LiftBan(ctx, id, liftedBy, at)
}

func (m *metricsMiddleware) SweepExpiredBans(ctx context.Context) (swept int64, err error) {
	defer func(s time.Time) { m.track("SweepExpiredBans", err, s) }(time.Now())
	return m.repo.SweepExpiredBans(ctx)
}

func (m *metricsMiddleware) CreateAppeal(ctx context.Context, appeal db.ModerationAppeal) (created db.ModerationAppeal, err error) {
	defer func(s time.Time) { m.track("CreateAppeal", err, s) }(time.Now())
	return m.repo.CreateAppeal(ctx, appeal)
}

func (m *metricsMiddleware) GetAppeal(ctx context.Context, id string) (appeal *db.ModerationAppeal, err error) {
	defer func(s time.Time) { m.track("GetAppeal", err, s) }(time.Now())
	return m.repo.GetAppeal(ctx, id)
}

func (m *metricsMiddleware) GetAppeals(ctx context.Context, limit int, offset int) (appeals []db.ModerationAppeal, err error) {
	defer func(s time.Time) { m.track("GetAppeals", err, s) }(time.Now())
	return m.repo.GetAppeals(ctx, limit, offset)
}

func (m *metricsMiddleware) FindOpenAppeal(ctx context.Context, appellantID, targetType, targetID string) (appeal *db.ModerationAppeal, err error) {
	defer func(s time.Time) { m.track("FindOpenAppeal", err, s) }(time.Now())
	return m.repo.FindOpenAppeal(ctx, appellantID, targetType, targetID)
}

func (m *metricsMiddleware) ReviewAppeal(ctx context.Context, id, decision, explanation, reviewerID string, resolvedAt *time.Time, reversalPending bool) (appeal *db.ModerationAppeal, err error) {
	defer func(s time.Time) { m.track("ReviewAppeal", err, s) }(time.Now())
	return m.repo.ReviewAppeal(ctx, id, decision, explanation, reviewerID, resolvedAt, reversalPending)
}

func (m *metricsMiddleware) EscalateAppeal(ctx context.Context, id string, at time.Time) (appeal *db.ModerationAppeal, err error) {
	defer func(s time.Time) { m.track("EscalateAppeal", err, s) }(time.Now())
	return m.repo.EscalateAppeal(ctx, id, at)
}

func (m *metricsMiddleware) AdminResolveAppeal(ctx context.Context, id, decision, explanation, adminID string, at time.Time, reversalPending bool) (appeal *db.ModerationAppeal, err error) {
	defer func(s time.Time) { m.track("AdminResolveAppeal", err, s) }(time.Now())
	return m.repo.AdminResolveAppeal(ctx, id, decision, explanation, adminID, at, reversalPending)
}

func (m *metricsMiddleware) ClearReversal(ctx context.Context, id string) (err error) {
	defer func(s time.Time) { m.track("ClearReversal", err, s) }(time.Now())
	return m.repo.ClearReversal(ctx, id)
}

func (m *metricsMiddleware) GetPendingReversals(ctx context.Context, limit int) (appeals []db.ModerationAppeal, err error) {
	defer func(s time.Time) { m.track("GetPendingReversals", err, s) }(time.Now())
	return m.repo.GetPendingReversals(ctx, limit)
}

func NewMetrics(reqCount *prometheus.CounterVec, reqDuration *prometheus.HistogramVec, repo Repository) Repository {
	return &metricsMiddleware{
		reqCount:    reqCount,
		reqDuration: reqDuration,
		repo:        repo,
	}
}
