package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-moderation/pkg/constants"
	"community-moderation/pkg/models/db"
)

// ErrDuplicate signals a unique constraint violation: a second active
// ban for the same pair, a second open appeal for the same target, or a
// repeated action for the same report.
var ErrDuplicate = errors.New("duplicate row")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id            UUID PRIMARY KEY,
	reporter_id   TEXT,
	target_type   TEXT NOT NULL,
	target_id     TEXT NOT NULL,
	community_id  TEXT NOT NULL,
	category      TEXT NOT NULL,
	reason_text   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	severity      INT  NOT NULL DEFAULT 1,
	priority      TEXT NOT NULL DEFAULT '',
	version       BIGINT NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS reports_target_idx ON reports (target_type, target_id);
CREATE INDEX IF NOT EXISTS reports_community_idx ON reports (community_id);

CREATE TABLE IF NOT EXISTS moderation_actions (
	id              UUID PRIMARY KEY,
	report_id       UUID REFERENCES reports (id),
	actor_id        TEXT NOT NULL,
	target_type     TEXT NOT NULL,
	target_id       TEXT NOT NULL,
	community_id    TEXT NOT NULL,
	action_type     TEXT NOT NULL,
	reason_category TEXT NOT NULL,
	reason_text     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'completed',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS actions_report_dedupe_idx
	ON moderation_actions (report_id, action_type)
	WHERE report_id IS NOT NULL AND status <> 'reverted';

CREATE TABLE IF NOT EXISTS community_bans (
	id              UUID PRIMARY KEY,
	community_id    TEXT NOT NULL,
	banned_user_id  TEXT NOT NULL,
	issued_by       TEXT NOT NULL,
	reason_category TEXT NOT NULL,
	reason_text     TEXT NOT NULL DEFAULT '',
	is_permanent    BOOLEAN NOT NULL DEFAULT FALSE,
	expires_at      TIMESTAMPTZ,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	lifted_at       TIMESTAMPTZ,
	lifted_by       TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT bans_expiry_shape CHECK (is_permanent = (expires_at IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS bans_single_active_idx
	ON community_bans (community_id, banned_user_id)
	WHERE is_active;

CREATE TABLE IF NOT EXISTS moderation_appeals (
	id                   UUID PRIMARY KEY,
	appellant_id         TEXT NOT NULL,
	target_type          TEXT NOT NULL,
	target_id            UUID NOT NULL,
	appeal_text          TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending',
	reviewed_by          TEXT,
	decision_explanation TEXT NOT NULL DEFAULT '',
	is_escalated         BOOLEAN NOT NULL DEFAULT FALSE,
	escalated_at         TIMESTAMPTZ,
	reversal_pending     BOOLEAN NOT NULL DEFAULT FALSE,
	resolved_at          TIMESTAMPTZ,
	version              BIGINT NOT NULL DEFAULT 1,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS appeals_single_open_idx
	ON moderation_appeals (appellant_id, target_type, target_id)
	WHERE resolved_at IS NULL;
`

type repository struct {
	db *pgxpool.Pool
}

// ReportUpdate is the patch applied by a CAS write on a report.
// Nil fields are left untouched.
type ReportUpdate struct {
	Status   string
	Priority *string
	Severity *int
}

type Repository interface {
	EnsureSchema(ctx context.Context) error

	CreateReport(ctx context.Context, report db.Report) (db.Report, error)
	GetReport(ctx context.Context, id string) (*db.Report, error)
	GetReports(ctx context.Context, limit int, offset int) ([]db.Report, error)
	FindOpenReport(ctx context.Context, reporterID, targetType, targetID string, since time.Time) (*db.Report, error)
	UpdateReport(ctx context.Context, id string, expectedVersion int64, update ReportUpdate) (*db.Report, error)

	CreateAction(ctx context.Context, action db.ModerationAction) (db.ModerationAction, error)
	GetAction(ctx context.Context, id string) (*db.ModerationAction, error)
	GetActions(ctx context.Context, limit int, offset int) ([]db.ModerationAction, error)
	RevertAction(ctx context.Context, id string) (*db.ModerationAction, error)

	CreateBan(ctx context.Context, ban db.CommunityBan) (db.CommunityBan, error)
	GetBan(ctx context.Context, id string) (*db.CommunityBan, error)
	GetBans(ctx context.Context, limit int, offset int) ([]db.CommunityBan, error)
	GetActiveBan(ctx context.Context, communityID, bannedUserID string) (*db.CommunityBan, error)
	LiftBan(ctx context.Context, id, liftedBy string, at time.Time) (*db.CommunityBan, error)
	SweepExpiredBans(ctx context.Context) (int64, error)

	CreateAppeal(ctx context.Context, appeal db.ModerationAppeal) (db.ModerationAppeal, error)
	GetAppeal(ctx context.Context, id string) (*db.ModerationAppeal, error)
	GetAppeals(ctx context.Context, limit int, offset int) ([]db.ModerationAppeal, error)
	FindOpenAppeal(ctx context.Context, appellantID, targetType, targetID string) (*db.ModerationAppeal, error)
	ReviewAppeal(ctx context.Context, id, decision, explanation, reviewerID string, resolvedAt *time.Time, reversalPending bool) (*db.ModerationAppeal, error)
	EscalateAppeal(ctx context.Context, id string, at time.Time) (*db.ModerationAppeal, error)
	AdminResolveAppeal(ctx context.Context, id, decision, explanation, adminID string, at time.Time, reversalPending bool) (*db.ModerationAppeal, error)
	ClearReversal(ctx context.Context, id string) error
	GetPendingReversals(ctx context.Context, limit int) ([]db.ModerationAppeal, error)
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{
		db: db,
	}
}

func (r *repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const reportColumns = `id, reporter_id, target_type, target_id, community_id,
	category, reason_text, status, severity, priority, version, created_at, updated_at`

func scanReport(row pgx.Row) (db.Report, error) {
	var report db.Report
	err := row.Scan(
		&report.ID, &report.ReporterID, &report.TargetType, &report.TargetID,
		&report.CommunityID, &report.Category, &report.ReasonText, &report.Status,
		&report.Severity, &report.Priority, &report.Version,
		&report.CreatedAt, &report.UpdatedAt,
	)
	return report, err
}

func (r *repository) CreateReport(ctx context.Context, report db.Report) (db.Report, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO reports (id, reporter_id, target_type, target_id, community_id, category, reason_text, status, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+reportColumns,
		uuid.NewString(), report.ReporterID, report.TargetType, report.TargetID,
		report.CommunityID, report.Category, report.ReasonText,
		constants.ReportPending, report.Severity,
	)

	return scanReport(row)
}

func (r *repository) GetReport(ctx context.Context, id string) (*db.Report, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)

	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &report, nil
}

func (r *repository) GetReports(ctx context.Context, limit int, offset int) (reports []db.Report, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

func (r *repository) FindOpenReport(ctx context.Context, reporterID, targetType, targetID string, since time.Time) (*db.Report, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE reporter_id = $1 AND target_type = $2 AND target_id = $3
			AND status IN ($4, $5)
			AND created_at > $6
		ORDER BY created_at DESC
		LIMIT 1`,
		reporterID, targetType, targetID,
		constants.ReportPending, constants.ReportTriaged, since,
	)

	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &report, nil
}

// UpdateReport is the single write path for reports: a compare-and-swap
// on the version column. Returns nil when the row is missing or the
// version is stale; the caller re-reads and classifies.
func (r *repository) UpdateReport(ctx context.Context, id string, expectedVersion int64, update ReportUpdate) (*db.Report, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE reports
		SET status = $3,
			priority = COALESCE($4, priority),
			severity = COALESCE($5, severity),
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+reportColumns,
		id, expectedVersion, update.Status, update.Priority, update.Severity,
	)

	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &report, nil
}

const actionColumns = `id, report_id, actor_id, target_type, target_id, community_id,
	action_type, reason_category, reason_text, status, created_at`

func scanAction(row pgx.Row) (db.ModerationAction, error) {
	var action db.ModerationAction
	err := row.Scan(
		&action.ID, &action.ReportID, &action.ActorID, &action.TargetType,
		&action.TargetID, &action.CommunityID, &action.ActionType,
		&action.ReasonCategory, &action.ReasonText, &action.Status, &action.CreatedAt,
	)
	return action, err
}

func (r *repository) CreateAction(ctx context.Context, action db.ModerationAction) (db.ModerationAction, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO moderation_actions (id, report_id, actor_id, target_type, target_id, community_id, action_type, reason_category, reason_text, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+actionColumns,
		uuid.NewString(), action.ReportID, action.ActorID, action.TargetType,
		action.TargetID, action.CommunityID, action.ActionType,
		action.ReasonCategory, action.ReasonText, constants.ActionCompleted,
	)

	created, err := scanAction(row)
	if isDuplicate(err) {
		return db.ModerationAction{}, ErrDuplicate
	}

	return created, err
}

func (r *repository) GetAction(ctx context.Context, id string) (*db.ModerationAction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+actionColumns+` FROM moderation_actions WHERE id = $1`, id)

	action, err := scanAction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &action, nil
}

func (r *repository) GetActions(ctx context.Context, limit int, offset int) (actions []db.ModerationAction, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+actionColumns+`
		FROM moderation_actions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	return actions, rows.Err()
}

func (r *repository) RevertAction(ctx context.Context, id string) (*db.ModerationAction, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE moderation_actions
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING `+actionColumns,
		id, constants.ActionReverted, constants.ActionCompleted,
	)

	action, err := scanAction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &action, nil
}

const banColumns = `id, community_id, banned_user_id, issued_by, reason_category,
	reason_text, is_permanent, expires_at, is_active, lifted_at, lifted_by, created_at`

func scanBan(row pgx.Row) (db.CommunityBan, error) {
	var ban db.CommunityBan
	err := row.Scan(
		&ban.ID, &ban.CommunityID, &ban.BannedUserID, &ban.IssuedBy,
		&ban.ReasonCategory, &ban.ReasonText, &ban.IsPermanent, &ban.ExpiresAt,
		&ban.IsActive, &ban.LiftedAt, &ban.LiftedBy, &ban.CreatedAt,
	)
	return ban, err
}

func (r *repository) CreateBan(ctx context.Context, ban db.CommunityBan) (db.CommunityBan, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO community_bans (id, community_id, banned_user_id, issued_by, reason_category, reason_text, is_permanent, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING `+banColumns,
		uuid.NewString(), ban.CommunityID, ban.BannedUserID, ban.IssuedBy,
		ban.ReasonCategory, ban.ReasonText, ban.IsPermanent, ban.ExpiresAt,
	)

	created, err := scanBan(row)
	if isDuplicate(err) {
		return db.CommunityBan{}, ErrDuplicate
	}

	return created, err
}

func (r *repository) GetBan(ctx context.Context, id string) (*db.CommunityBan, error) {
	row := r.db.QueryRow(ctx, `SELECT `+banColumns+` FROM community_bans WHERE id = $1`, id)

	ban, err := scanBan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ban, nil
}

func (r *repository) GetBans(ctx context.Context, limit int, offset int) (bans []db.CommunityBan, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+banColumns+`
		FROM community_bans
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ban, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		bans = append(bans, ban)
	}

	return bans, rows.Err()
}

// GetActiveBan returns the effectively active ban for the pair, deriving
// activity from expiry at read time rather than trusting is_active alone.
func (r *repository) GetActiveBan(ctx context.Context, communityID, bannedUserID string) (*db.CommunityBan, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+banColumns+`
		FROM community_bans
		WHERE community_id = $1 AND banned_user_id = $2
			AND is_active
			AND (is_permanent OR expires_at > now())`,
		communityID, bannedUserID,
	)

	ban, err := scanBan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ban, nil
}

// LiftBan deactivates a ban that is still effectively active. Returns
// nil when the ban is missing, already lifted, or already expired.
func (r *repository) LiftBan(ctx context.Context, id, liftedBy string, at time.Time) (*db.CommunityBan, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE community_bans
		SET is_active = FALSE, lifted_at = $3, lifted_by = $2
		WHERE id = $1 AND is_active AND (is_permanent OR expires_at > now())
		RETURNING `+banColumns,
		id, liftedBy, at,
	)

	ban, err := scanBan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ban, nil
}

func (r *repository) SweepExpiredBans(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE community_bans
		SET is_active = FALSE
		WHERE is_active AND NOT is_permanent AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

const appealColumns = `id, appellant_id, target_type, target_id, appeal_text, status,
	reviewed_by, decision_explanation, is_escalated, escalated_at,
	reversal_pending, resolved_at, version, created_at, updated_at`

func scanAppeal(row pgx.Row) (db.ModerationAppeal, error) {
	var appeal db.ModerationAppeal
	err := row.Scan(
		&appeal.ID, &appeal.AppellantID, &appeal.TargetType, &appeal.TargetID,
		&appeal.AppealText, &appeal.Status, &appeal.ReviewedBy,
		&appeal.DecisionExplanation, &appeal.IsEscalated, &appeal.EscalatedAt,
		&appeal.ReversalPending, &appeal.ResolvedAt, &appeal.Version,
		&appeal.CreatedAt, &appeal.UpdatedAt,
	)
	return appeal, err
}

func (r *repository) CreateAppeal(ctx context.Context, appeal db.ModerationAppeal) (db.ModerationAppeal, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO moderation_appeals (id, appellant_id, target_type, target_id, appeal_text, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+appealColumns,
		uuid.NewString(), appeal.AppellantID, appeal.TargetType, appeal.TargetID,
		appeal.AppealText, constants.AppealPending,
	)

	created, err := scanAppeal(row)
	if isDuplicate(err) {
		return db.ModerationAppeal{}, ErrDuplicate
	}

	return created, err
}

func (r *repository) GetAppeal(ctx context.Context, id string) (*db.ModerationAppeal, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appealColumns+` FROM moderation_appeals WHERE id = $1`, id)

	appeal, err := scanAppeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &appeal, nil
}

func (r *repository) GetAppeals(ctx context.Context, limit int, offset int) (appeals []db.ModerationAppeal, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appealColumns+`
		FROM moderation_appeals
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		appeal, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		appeals = append(appeals, appeal)
	}

	return appeals, rows.Err()
}

func (r *repository) FindOpenAppeal(ctx context.Context, appellantID, targetType, targetID string) (*db.ModerationAppeal, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appealColumns+`
		FROM moderation_appeals
		WHERE appellant_id = $1 AND target_type = $2 AND target_id = $3
			AND resolved_at IS NULL
		LIMIT 1`,
		appellantID, targetType, targetID,
	)

	appeal, err := scanAppeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &appeal, nil
}

// ReviewAppeal applies the community-level decision. The WHERE clause is
// the state guard: only a pending, unescalated, unresolved appeal can be
// reviewed, and concurrent reviewers lose by matching zero rows.
func (r *repository) ReviewAppeal(ctx context.Context, id, decision, explanation, reviewerID string, resolvedAt *time.Time, reversalPending bool) (*db.ModerationAppeal, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE moderation_appeals
		SET status = $2,
			decision_explanation = $3,
			reviewed_by = $4,
			resolved_at = $5,
			reversal_pending = $6,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND status = $7 AND NOT is_escalated AND resolved_at IS NULL
		RETURNING `+appealColumns,
		id, decision, explanation, reviewerID, resolvedAt, reversalPending,
		constants.AppealPending,
	)

	appeal, err := scanAppeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &appeal, nil
}

// EscalateAppeal promotes a community-level loss to admin review. The
// guard admits exactly one escalation: a second call matches zero rows.
func (r *repository) EscalateAppeal(ctx context.Context, id string, at time.Time) (*db.ModerationAppeal, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE moderation_appeals
		SET status = $3,
			is_escalated = TRUE,
			escalated_at = $2,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND status = $4 AND NOT is_escalated AND resolved_at IS NULL
		RETURNING `+appealColumns,
		id, at, constants.AppealPending, constants.AppealUpheld,
	)

	appeal, err := scanAppeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &appeal, nil
}

func (r *repository) AdminResolveAppeal(ctx context.Context, id, decision, explanation, adminID string, at time.Time, reversalPending bool) (*db.ModerationAppeal, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE moderation_appeals
		SET status = $2,
			decision_explanation = $3,
			reviewed_by = $4,
			resolved_at = $5,
			reversal_pending = $6,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND status = $7 AND is_escalated AND resolved_at IS NULL
		RETURNING `+appealColumns,
		id, decision, explanation, adminID, at, reversalPending,
		constants.AppealPending,
	)

	appeal, err := scanAppeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &appeal, nil
}

func (r *repository) ClearReversal(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE moderation_appeals
		SET reversal_pending = FALSE,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND reversal_pending`, id)
	return err
}

func (r *repository) GetPendingReversals(ctx context.Context, limit int) (appeals []db.ModerationAppeal, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appealColumns+`
		FROM moderation_appeals
		WHERE reversal_pending
		ORDER BY updated_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		appeal, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		appeals = append(appeals, appeal)
	}

	return appeals, rows.Err()
}
