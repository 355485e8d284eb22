package reports

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-moderation/pkg/constants"
	"community-moderation/pkg/models"
	v1 "community-moderation/pkg/models/api/v1"
	"community-moderation/pkg/models/db"
	"community-moderation/pkg/models/private"
	moderationRepo "community-moderation/pkg/repositories/moderation"
)

type fakeRepo struct {
	mu      sync.Mutex
	reports map[string]db.Report
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{reports: map[string]db.Report{}}
}

func (f *fakeRepo) CreateReport(ctx context.Context, report db.Report) (db.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	report.ID = uuid.NewString()
	report.Status = constants.ReportPending
	report.Version = 1
	report.CreatedAt = time.Now()
	report.UpdatedAt = report.CreatedAt
	f.reports[report.ID] = report
	return report, nil
}

func (f *fakeRepo) GetReport(ctx context.Context, id string) (*db.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	report, ok := f.reports[id]
	if !ok {
		return nil, nil
	}
	return &report, nil
}

func (f *fakeRepo) GetReports(ctx context.Context, limit int, offset int) ([]db.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []db.Report
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRepo) FindOpenReport(ctx context.Context, reporterID, targetType, targetID string, since time.Time) (*db.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.reports {
		if r.ReporterID == nil || *r.ReporterID != reporterID {
			continue
		}
		if r.TargetType != targetType || r.TargetID != targetID {
			continue
		}
		if r.Status != constants.ReportPending && r.Status != constants.ReportTriaged {
			continue
		}
		if !r.CreatedAt.After(since) {
			continue
		}
		report := r
		return &report, nil
	}
	return nil, nil
}

func (f *fakeRepo) UpdateReport(ctx context.Context, id string, expectedVersion int64, update moderationRepo.ReportUpdate) (*db.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	report, ok := f.reports[id]
	if !ok || report.Version != expectedVersion {
		return nil, nil
	}

	report.Status = update.Status
	if update.Priority != nil {
		report.Priority = *update.Priority
	}
	if update.Severity != nil {
		report.Severity = *update.Severity
	}
	report.Version++
	report.UpdatedAt = time.Now()
	f.reports[id] = report
	return &report, nil
}

type fakeDirectory struct {
	communities map[string]bool
	users       map[string]bool
	members     map[string]bool
}

func (f *fakeDirectory) CommunityExists(ctx context.Context, communityID string) (bool, error) {
	return f.communities[communityID], nil
}

func (f *fakeDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	return f.users[userID], nil
}

func (f *fakeDirectory) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	return f.members[communityID+"/"+userID], nil
}

type fakeContent struct {
	existing map[string]bool
}

func (f *fakeContent) Exists(ctx context.Context, targetType, targetID string) (bool, error) {
	return f.existing[targetType+"/"+targetID], nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEmitter) Emit(eventType string, payload any) {
	f.mu.Lock()
	f.events = append(f.events, eventType)
	f.mu.Unlock()
}

func newTestService(repo *fakeRepo) (Reports, *fakeEmitter) {
	dir := &fakeDirectory{
		communities: map[string]bool{"c1": true},
		users:       map[string]bool{"u1": true, "u2": true},
		members:     map[string]bool{"c1/u2": true},
	}
	content := &fakeContent{existing: map[string]bool{"post/p1": true}}
	emitter := &fakeEmitter{}
	svc := NewService(repo, dir, content, emitter, 24*time.Hour, slog.New(slog.DiscardHandler))
	return svc, emitter
}

func moderatorOf(community string) private.Actor {
	return private.Actor{ID: "mod", Moderates: []string{community}}
}

func TestCreateReportSeedsSeverityFromCategory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	svc, emitter := newTestService(newFakeRepo())

	reporter := "u1"
	report, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    constants.CategoryViolence,
	})
	require.NoError(err)

	assert.Equal(constants.ReportPending, report.Status)
	assert.Equal(constants.SeverityCritical, report.Severity)
	assert.Equal(int64(1), report.Version)
	assert.Contains(emitter.events, "report.created")
}

func TestCreateReportUnknownCategoryDefaultsLow(t *testing.T) {
	require := require.New(t)

	svc, _ := newTestService(newFakeRepo())

	reporter := "u1"
	report, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    "something-new",
	})
	require.NoError(err)
	require.Equal(constants.SeverityLow, report.Severity)
}

func TestCreateReportRejectsUnknownTargets(t *testing.T) {
	assert := assert.New(t)

	svc, _ := newTestService(newFakeRepo())
	reporter := "u1"

	_, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "missing",
		CommunityID: "c1",
		Category:    constants.CategorySpam,
	})
	assert.True(models.IsNotFound(err))

	_, err = svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "nope",
		Category:    constants.CategorySpam,
	})
	assert.True(models.IsNotFound(err))
}

func TestCreateReportUserTargetRequiresMembership(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	svc, _ := newTestService(newFakeRepo())
	reporter := "u1"

	// u2 is a member of c1, u1 is not.
	_, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetUser,
		TargetID:    "u2",
		CommunityID: "c1",
		Category:    constants.CategoryHarassment,
	})
	require.NoError(err)

	other := "u2"
	_, err = svc.Create(context.Background(), &other, v1.CreateReport{
		TargetType:  constants.TargetUser,
		TargetID:    "u1",
		CommunityID: "c1",
		Category:    constants.CategoryHarassment,
	})
	appErr, ok := err.(*models.AppError)
	require.True(ok)
	assert.Equal(models.ValidationErrorCode, appErr.Code)
}

func TestCreateReportCooldownDedupe(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	svc, _ := newTestService(newFakeRepo())
	reporter := "u1"

	req := v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    constants.CategorySpam,
	}

	_, err := svc.Create(context.Background(), &reporter, req)
	require.NoError(err)

	_, err = svc.Create(context.Background(), &reporter, req)
	assert.True(models.IsConflict(err))
}

func TestCreateReportAnonymousSkipsCooldown(t *testing.T) {
	require := require.New(t)

	svc, _ := newTestService(newFakeRepo())

	req := v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    constants.CategorySpam,
	}

	_, err := svc.Create(context.Background(), nil, req)
	require.NoError(err)

	_, err = svc.Create(context.Background(), nil, req)
	require.NoError(err)
}

func TestTriageStaleVersionConflicts(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	reporter := "u1"
	report, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    constants.CategorySpam,
	})
	require.NoError(err)

	mod := moderatorOf("c1")
	triage := v1.TriageReport{
		Priority:        constants.PriorityHigh,
		Severity:        constants.SeverityHigh,
		ExpectedVersion: report.Version,
	}

	updated, err := svc.Triage(context.Background(), mod, report.ID, triage)
	require.NoError(err)
	assert.Equal(constants.ReportTriaged, updated.Status)
	assert.Equal(report.Version+1, updated.Version)

	// Second triage with the original token loses the race and
	// leaves the winner's patch untouched.
	stale := v1.TriageReport{
		Priority:        constants.PriorityLow,
		Severity:        constants.SeverityLow,
		ExpectedVersion: report.Version,
	}
	_, err = svc.Triage(context.Background(), mod, report.ID, stale)
	assert.True(models.IsConflict(err))

	current, err := svc.Get(context.Background(), mod, report.ID)
	require.NoError(err)
	assert.Equal(constants.PriorityHigh, current.Priority)
	assert.Equal(constants.SeverityHigh, current.Severity)
	assert.Equal(updated.Version, current.Version)
}

func TestConcurrentTriageExactlyOneWins(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	reporter := "u1"
	report, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    constants.CategorySpam,
	})
	require.NoError(err)

	mod := moderatorOf("c1")

	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Triage(context.Background(), mod, report.ID, v1.TriageReport{
				Priority:        constants.PriorityNormal,
				Severity:        constants.SeverityMedium,
				ExpectedVersion: report.Version,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			require.True(models.IsConflict(err))
		}
	}
	require.Equal(1, wins)
}

func TestTriageForbiddenOutsideScope(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	reporter := "u1"
	report, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    constants.CategorySpam,
	})
	require.NoError(err)

	_, err = svc.Triage(context.Background(), moderatorOf("other"), report.ID, v1.TriageReport{
		Priority:        constants.PriorityLow,
		Severity:        constants.SeverityLow,
		ExpectedVersion: report.Version,
	})
	appErr, ok := err.(*models.AppError)
	require.True(ok)
	require.Equal(models.ForbiddenErrorCode, appErr.Code)
}

func TestDismissClosedReportConflicts(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newFakeRepo()
	svc, emitter := newTestService(repo)

	reporter := "u1"
	report, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    constants.CategorySpam,
	})
	require.NoError(err)

	mod := moderatorOf("c1")
	dismissed, err := svc.Dismiss(context.Background(), mod, report.ID, report.Version)
	require.NoError(err)
	assert.Equal(constants.ReportDismissed, dismissed.Status)
	assert.Contains(emitter.events, "report.dismissed")

	_, err = svc.Dismiss(context.Background(), mod, report.ID, dismissed.Version)
	assert.True(models.IsConflict(err))
}

func TestGetAllFiltersByScope(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	reporter := "u1"
	_, err := svc.Create(context.Background(), &reporter, v1.CreateReport{
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: "c1",
		Category:    constants.CategorySpam,
	})
	require.NoError(err)

	visible, err := svc.GetAll(context.Background(), moderatorOf("c1"), 100, 0)
	require.NoError(err)
	require.Len(visible, 1)

	hidden, err := svc.GetAll(context.Background(), moderatorOf("other"), 100, 0)
	require.NoError(err)
	require.Empty(hidden)

	admin, err := svc.GetAll(context.Background(), private.Actor{ID: "a", PlatformAdmin: true}, 100, 0)
	require.NoError(err)
	require.Len(admin, 1)
}
