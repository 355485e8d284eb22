package actions

import (
	"context"
	"errors"
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
	actions map[string]db.ModerationAction
	reports map[string]db.Report
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		actions: map[string]db.ModerationAction{},
		reports: map[string]db.Report{},
	}
}

// CreateAction mirrors the dedupe index: one non-reverted row per
// (report, action type).
func (f *fakeRepo) CreateAction(ctx context.Context, action db.ModerationAction) (db.ModerationAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if action.ReportID != nil {
		for _, a := range f.actions {
			if a.ReportID != nil && *a.ReportID == *action.ReportID &&
				a.ActionType == action.ActionType && a.Status != constants.ActionReverted {
				return db.ModerationAction{}, moderationRepo.ErrDuplicate
			}
		}
	}

	action.ID = uuid.NewString()
	action.Status = constants.ActionCompleted
	action.CreatedAt = time.Now()
	f.actions[action.ID] = action
	return action, nil
}

func (f *fakeRepo) GetAction(ctx context.Context, id string) (*db.ModerationAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	action, ok := f.actions[id]
	if !ok {
		return nil, nil
	}
	return &action, nil
}

func (f *fakeRepo) GetActions(ctx context.Context, limit int, offset int) ([]db.ModerationAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []db.ModerationAction
	for _, a := range f.actions {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) RevertAction(ctx context.Context, id string) (*db.ModerationAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	action, ok := f.actions[id]
	if !ok || action.Status != constants.ActionCompleted {
		return nil, nil
	}

	action.Status = constants.ActionReverted
	f.actions[id] = action
	return &action, nil
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

func (f *fakeRepo) UpdateReport(ctx context.Context, id string, expectedVersion int64, update moderationRepo.ReportUpdate) (*db.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	report, ok := f.reports[id]
	if !ok || report.Version != expectedVersion {
		return nil, nil
	}

	report.Status = update.Status
	report.Version++
	f.reports[id] = report
	return &report, nil
}

type fakeContent struct {
	mu       sync.Mutex
	removed  []string
	failWith error
}

func (f *fakeContent) ApplyRemoval(ctx context.Context, targetType, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return f.failWith
	}
	f.removed = append(f.removed, targetType+"/"+targetID)
	return nil
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

func newTestService(repo *fakeRepo, content *fakeContent) (Actions, *fakeEmitter) {
	emitter := &fakeEmitter{}
	svc := NewService(repo, content, emitter, slog.New(slog.DiscardHandler))
	return svc, emitter
}

func moderatorOf(community string) private.Actor {
	return private.Actor{ID: "mod", Moderates: []string{community}}
}

func seedReport(repo *fakeRepo, id, community string) {
	repo.reports[id] = db.Report{
		ID:          id,
		TargetType:  constants.TargetPost,
		TargetID:    "p1",
		CommunityID: community,
		Status:      constants.ReportTriaged,
		Version:     2,
	}
}

func TestCreateActionClosesReport(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newFakeRepo()
	content := &fakeContent{}
	svc, emitter := newTestService(repo, content)

	seedReport(repo, "r1", "c1")
	reportID := "r1"

	action, err := svc.Create(context.Background(), moderatorOf("c1"), v1.CreateAction{
		ReportID:       &reportID,
		TargetType:     constants.TargetPost,
		TargetID:       "p1",
		CommunityID:    "c1",
		ActionType:     constants.ActionRemove,
		ReasonCategory: constants.CategorySpam,
	})
	require.NoError(err)

	assert.Equal(constants.ActionCompleted, action.Status)
	assert.Equal(constants.ReportReviewed, repo.reports["r1"].Status)
	assert.Contains(content.removed, "post/p1")
	assert.Contains(emitter.events, "action.created")
	assert.Contains(emitter.events, "report.reviewed")
}

func TestCreateActionRemovalFailureKeepsAction(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	content := &fakeContent{failWith: errors.New("content store down")}
	svc, _ := newTestService(repo, content)

	action, err := svc.Create(context.Background(), moderatorOf("c1"), v1.CreateAction{
		TargetType:     constants.TargetPost,
		TargetID:       "p1",
		CommunityID:    "c1",
		ActionType:     constants.ActionRemove,
		ReasonCategory: constants.CategorySpam,
	})
	require.NoError(err)
	require.Equal(constants.ActionCompleted, action.Status)
}

func TestCreateActionDedupePerReport(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeContent{})

	seedReport(repo, "r1", "c1")
	reportID := "r1"

	req := v1.CreateAction{
		ReportID:       &reportID,
		TargetType:     constants.TargetPost,
		TargetID:       "p1",
		CommunityID:    "c1",
		ActionType:     constants.ActionWarn,
		ReasonCategory: constants.CategorySpam,
	}

	_, err := svc.Create(context.Background(), moderatorOf("c1"), req)
	require.NoError(err)

	// Reopen the report so only the dedupe index stands in the way.
	seedReport(repo, "r1", "c1")

	_, err = svc.Create(context.Background(), moderatorOf("c1"), req)
	require.True(models.IsConflict(err))
}

func TestCreateActionValidation(t *testing.T) {
	assert := assert.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeContent{})
	mod := moderatorOf("c1")

	// Revert cannot be recorded directly.
	_, err := svc.Create(context.Background(), mod, v1.CreateAction{
		TargetType:     constants.TargetPost,
		TargetID:       "p1",
		CommunityID:    "c1",
		ActionType:     constants.ActionRevert,
		ReasonCategory: constants.CategorySpam,
	})
	appErr, ok := err.(*models.AppError)
	assert.True(ok)
	assert.Equal(models.ValidationErrorCode, appErr.Code)

	// Report from a different community.
	seedReport(repo, "r1", "other")
	reportID := "r1"
	_, err = svc.Create(context.Background(), mod, v1.CreateAction{
		ReportID:       &reportID,
		TargetType:     constants.TargetPost,
		TargetID:       "p1",
		CommunityID:    "c1",
		ActionType:     constants.ActionWarn,
		ReasonCategory: constants.CategorySpam,
	})
	appErr, ok = err.(*models.AppError)
	assert.True(ok)
	assert.Equal(models.ValidationErrorCode, appErr.Code)

	// Closed report.
	repo.reports["r2"] = db.Report{
		ID:          "r2",
		CommunityID: "c1",
		Status:      constants.ReportDismissed,
		Version:     2,
	}
	reportID = "r2"
	_, err = svc.Create(context.Background(), mod, v1.CreateAction{
		ReportID:       &reportID,
		TargetType:     constants.TargetPost,
		TargetID:       "p1",
		CommunityID:    "c1",
		ActionType:     constants.ActionWarn,
		ReasonCategory: constants.CategorySpam,
	})
	assert.True(models.IsConflict(err))
}

func TestRevertAction(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newFakeRepo()
	svc, emitter := newTestService(repo, &fakeContent{})
	mod := moderatorOf("c1")

	action, err := svc.Create(context.Background(), mod, v1.CreateAction{
		TargetType:     constants.TargetPost,
		TargetID:       "p1",
		CommunityID:    "c1",
		ActionType:     constants.ActionWarn,
		ReasonCategory: constants.CategorySpam,
	})
	require.NoError(err)

	require.NoError(svc.Revert(context.Background(), mod, action.ID))
	assert.Equal(constants.ActionReverted, repo.actions[action.ID].Status)
	assert.Contains(emitter.events, "action.reverted")

	// An audit entry documents the revert.
	entries := 0
	for _, a := range repo.actions {
		if a.ActionType == constants.ActionRevert {
			entries++
		}
	}
	assert.Equal(1, entries)

	// Reverting twice is a conflict.
	err = svc.Revert(context.Background(), mod, action.ID)
	assert.True(models.IsConflict(err))
}

func TestRevertForbiddenOutsideScope(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeContent{})

	action, err := svc.Create(context.Background(), moderatorOf("c1"), v1.CreateAction{
		TargetType:     constants.TargetPost,
		TargetID:       "p1",
		CommunityID:    "c1",
		ActionType:     constants.ActionWarn,
		ReasonCategory: constants.CategorySpam,
	})
	require.NoError(err)

	err = svc.Revert(context.Background(), moderatorOf("other"), action.ID)
	appErr, ok := err.(*models.AppError)
	require.True(ok)
	require.Equal(models.ForbiddenErrorCode, appErr.Code)
}
