package reversals

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-moderation/pkg/constants"
	"community-moderation/pkg/models/db"
)

type fakeRepo struct {
	mu      sync.Mutex
	pending []db.ModerationAppeal
	cleared []string
	lifted  []string
	liftErr error
	banGone bool
}

func (f *fakeRepo) GetPendingReversals(ctx context.Context, limit int) ([]db.ModerationAppeal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, nil
}

func (f *fakeRepo) LiftBan(ctx context.Context, id, liftedBy string, at time.Time) (*db.CommunityBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.liftErr != nil {
		return nil, f.liftErr
	}
	if f.banGone {
		return nil, nil
	}
	f.lifted = append(f.lifted, id+"/"+liftedBy)
	return &db.CommunityBan{ID: id, LiftedBy: &liftedBy}, nil
}

func (f *fakeRepo) RevertAction(ctx context.Context, id string) (*db.ModerationAction, error) {
	return &db.ModerationAction{ID: id, Status: constants.ActionReverted}, nil
}

func (f *fakeRepo) ClearReversal(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
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

func pendingBanAppeal(id string) db.ModerationAppeal {
	reviewer := "mod"
	return db.ModerationAppeal{
		ID:              id,
		AppellantID:     "u1",
		TargetType:      constants.AppealTargetBan,
		TargetID:        "b1",
		Status:          constants.AppealOverturned,
		ReviewedBy:      &reviewer,
		ReversalPending: true,
	}
}

func TestRetryReversalsLiftsAndClears(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := &fakeRepo{pending: []db.ModerationAppeal{pendingBanAppeal("ap1")}}
	emitter := &fakeEmitter{}
	w := NewWorker(repo, emitter, time.Minute, slog.New(slog.DiscardHandler))

	interval, err := w.RetryReversals(context.Background())
	require.NoError(err)

	assert.Equal(time.Minute, interval)
	assert.Equal([]string{"b1/mod"}, repo.lifted)
	assert.Equal([]string{"ap1"}, repo.cleared)
	assert.Contains(emitter.events, "ban.lifted")
}

func TestRetryReversalsAlreadyInactiveBanCountsAsDone(t *testing.T) {
	require := require.New(t)

	repo := &fakeRepo{
		pending: []db.ModerationAppeal{pendingBanAppeal("ap1")},
		banGone: true,
	}
	emitter := &fakeEmitter{}
	w := NewWorker(repo, emitter, time.Minute, slog.New(slog.DiscardHandler))

	_, err := w.RetryReversals(context.Background())
	require.NoError(err)
	require.Equal([]string{"ap1"}, repo.cleared)
	require.Empty(emitter.events)
}

func TestRetryReversalsKeepsFlagOnFailure(t *testing.T) {
	require := require.New(t)

	repo := &fakeRepo{
		pending: []db.ModerationAppeal{pendingBanAppeal("ap1")},
		liftErr: errors.New("db down"),
	}
	w := NewWorker(repo, &fakeEmitter{}, time.Minute, slog.New(slog.DiscardHandler))

	interval, err := w.RetryReversals(context.Background())
	require.NoError(err)
	require.Empty(repo.cleared)
	require.Equal(5*time.Second, interval)
}

func TestRetryReversalsRevertsActions(t *testing.T) {
	require := require.New(t)

	appeal := pendingBanAppeal("ap1")
	appeal.TargetType = constants.AppealTargetAction
	appeal.TargetID = "a1"

	repo := &fakeRepo{pending: []db.ModerationAppeal{appeal}}
	emitter := &fakeEmitter{}
	w := NewWorker(repo, emitter, time.Minute, slog.New(slog.DiscardHandler))

	_, err := w.RetryReversals(context.Background())
	require.NoError(err)
	require.Equal([]string{"ap1"}, repo.cleared)
	require.Contains(emitter.events, "action.reverted")
}
