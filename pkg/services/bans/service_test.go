package bans

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
	mu   sync.Mutex
	bans map[string]db.CommunityBan
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bans: map[string]db.CommunityBan{}}
}

// CreateBan mirrors the partial unique index: at most one row with
// is_active per (community, user), whether or not it already expired.
func (f *fakeRepo) CreateBan(ctx context.Context, ban db.CommunityBan) (db.CommunityBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.bans {
		if b.CommunityID == ban.CommunityID && b.BannedUserID == ban.BannedUserID && b.IsActive {
			return db.CommunityBan{}, moderationRepo.ErrDuplicate
		}
	}

	ban.ID = uuid.NewString()
	ban.IsActive = true
	ban.CreatedAt = time.Now()
	f.bans[ban.ID] = ban
	return ban, nil
}

func (f *fakeRepo) GetBan(ctx context.Context, id string) (*db.CommunityBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ban, ok := f.bans[id]
	if !ok {
		return nil, nil
	}
	return &ban, nil
}

func (f *fakeRepo) GetBans(ctx context.Context, limit int, offset int) ([]db.CommunityBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []db.CommunityBan
	for _, b := range f.bans {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRepo) GetActiveBan(ctx context.Context, communityID, bannedUserID string) (*db.CommunityBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	for _, b := range f.bans {
		if b.CommunityID == communityID && b.BannedUserID == bannedUserID && b.EffectiveActive(now) {
			ban := b
			return &ban, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) LiftBan(ctx context.Context, id, liftedBy string, at time.Time) (*db.CommunityBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ban, ok := f.bans[id]
	if !ok || !ban.EffectiveActive(at) {
		return nil, nil
	}

	ban.IsActive = false
	ban.LiftedAt = &at
	ban.LiftedBy = &liftedBy
	f.bans[id] = ban
	return &ban, nil
}

func (f *fakeRepo) SweepExpiredBans(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	var swept int64
	for id, b := range f.bans {
		if b.IsActive && !b.IsPermanent && b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
			b.IsActive = false
			f.bans[id] = b
			swept++
		}
	}
	return swept, nil
}

type fakeDirectory struct{}

func (fakeDirectory) CommunityExists(ctx context.Context, communityID string) (bool, error) {
	return communityID == "c1", nil
}

func (fakeDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	return userID != "ghost", nil
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

func newTestService(repo *fakeRepo) (Bans, *fakeEmitter) {
	emitter := &fakeEmitter{}
	svc := NewService(repo, fakeDirectory{}, emitter, slog.New(slog.DiscardHandler))
	return svc, emitter
}

func moderatorOf(community string) private.Actor {
	return private.Actor{ID: "mod", Moderates: []string{community}}
}

func TestIssuePermanentBan(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	svc, emitter := newTestService(newFakeRepo())

	ban, err := svc.Issue(context.Background(), moderatorOf("c1"), v1.IssueBan{
		CommunityID:    "c1",
		BannedUserID:   "u1",
		ReasonCategory: constants.CategoryHarassment,
		IsPermanent:    true,
	})
	require.NoError(err)

	assert.True(ban.IsActive)
	assert.True(ban.IsPermanent)
	assert.Equal("mod", ban.IssuedBy)
	assert.Contains(emitter.events, "ban.issued")
}

func TestIssueBanValidation(t *testing.T) {
	assert := assert.New(t)

	svc, _ := newTestService(newFakeRepo())
	mod := moderatorOf("c1")

	// Permanent with expiry.
	_, err := svc.Issue(context.Background(), mod, v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsPermanent:  true,
		ExpiresAt:    uint64(time.Now().Add(time.Hour).Unix()),
	})
	appErr, ok := err.(*models.AppError)
	assert.True(ok)
	assert.Equal(models.ValidationErrorCode, appErr.Code)

	// Temporary without expiry.
	_, err = svc.Issue(context.Background(), mod, v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
	})
	appErr, ok = err.(*models.AppError)
	assert.True(ok)
	assert.Equal(models.ValidationErrorCode, appErr.Code)

	// Expiry in the past.
	_, err = svc.Issue(context.Background(), mod, v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
		ExpiresAt:    uint64(time.Now().Add(-time.Hour).Unix()),
	})
	appErr, ok = err.(*models.AppError)
	assert.True(ok)
	assert.Equal(models.ValidationErrorCode, appErr.Code)

	// Unknown user.
	_, err = svc.Issue(context.Background(), mod, v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "ghost",
		IsPermanent:  true,
	})
	assert.True(models.IsNotFound(err))

	// Not a moderator of the community.
	_, err = svc.Issue(context.Background(), moderatorOf("other"), v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsPermanent:  true,
	})
	appErr, ok = err.(*models.AppError)
	assert.True(ok)
	assert.Equal(models.ForbiddenErrorCode, appErr.Code)
}

func TestIssueDuplicateActiveBanConflicts(t *testing.T) {
	require := require.New(t)

	svc, _ := newTestService(newFakeRepo())
	mod := moderatorOf("c1")

	req := v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsPermanent:  true,
	}

	_, err := svc.Issue(context.Background(), mod, req)
	require.NoError(err)

	_, err = svc.Issue(context.Background(), mod, req)
	require.True(models.IsConflict(err))
}

func TestIssueSweepsExpiredUnsweptBan(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	mod := moderatorOf("c1")

	// Simulate a temporary ban that expired before the sweeper ran. The
	// stored row still holds is_active and blocks the unique index.
	expired := time.Now().Add(-time.Minute)
	repo.bans["old"] = db.CommunityBan{
		ID:           "old",
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsActive:     true,
		ExpiresAt:    &expired,
	}

	ban, err := svc.Issue(context.Background(), mod, v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsPermanent:  true,
	})
	require.NoError(err)
	require.True(ban.IsActive)
	require.False(repo.bans["old"].IsActive)
}

func TestConcurrentIssueSingleActiveBan(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	mod := moderatorOf("c1")

	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Issue(context.Background(), mod, v1.IssueBan{
				CommunityID:  "c1",
				BannedUserID: "u1",
				IsPermanent:  true,
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

func TestEffectiveStateIndependentOfSweep(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	expired := time.Now().Add(-time.Minute)
	repo.bans["old"] = db.CommunityBan{
		ID:           "old",
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsActive:     true,
		ExpiresAt:    &expired,
	}

	// The sweeper has not run, yet the ban already reads as inactive.
	ban, err := svc.Get(context.Background(), moderatorOf("c1"), "old")
	require.NoError(err)
	assert.False(ban.IsActive)

	active, err := svc.GetActive(context.Background(), moderatorOf("c1"), "c1", "u1")
	require.NoError(err)
	assert.Nil(active)
}

func TestLiftBan(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newFakeRepo()
	svc, emitter := newTestService(repo)
	mod := moderatorOf("c1")

	ban, err := svc.Issue(context.Background(), mod, v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsPermanent:  true,
	})
	require.NoError(err)

	require.NoError(svc.Lift(context.Background(), mod, ban.ID))
	assert.Contains(emitter.events, "ban.lifted")

	lifted, err := svc.Get(context.Background(), mod, ban.ID)
	require.NoError(err)
	assert.False(lifted.IsActive)
	require.NotNil(lifted.LiftedBy)
	assert.Equal("mod", *lifted.LiftedBy)

	// Lifting twice is a conflict.
	err = svc.Lift(context.Background(), mod, ban.ID)
	assert.True(models.IsConflict(err))
}

func TestBannedUserMaySeeOwnBan(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	ban, err := svc.Issue(context.Background(), moderatorOf("c1"), v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsPermanent:  true,
	})
	require.NoError(err)

	_, err = svc.Get(context.Background(), private.Actor{ID: "u1"}, ban.ID)
	require.NoError(err)

	_, err = svc.Get(context.Background(), private.Actor{ID: "u2"}, ban.ID)
	appErr, ok := err.(*models.AppError)
	require.True(ok)
	require.Equal(models.ForbiddenErrorCode, appErr.Code)
}

func TestGetActiveScope(t *testing.T) {
	require := require.New(t)

	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Issue(context.Background(), moderatorOf("c1"), v1.IssueBan{
		CommunityID:  "c1",
		BannedUserID: "u1",
		IsPermanent:  true,
	})
	require.NoError(err)

	// The user can check their own standing.
	active, err := svc.GetActive(context.Background(), private.Actor{ID: "u1"}, "c1", "u1")
	require.NoError(err)
	require.NotNil(active)
	require.True(active.IsActive)

	// A stranger cannot.
	_, err = svc.GetActive(context.Background(), private.Actor{ID: "u2"}, "c1", "u1")
	appErr, ok := err.(*models.AppError)
	require.True(ok)
	require.Equal(models.ForbiddenErrorCode, appErr.Code)
}
