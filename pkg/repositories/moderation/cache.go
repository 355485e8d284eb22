package moderation

import (
	"context"
	"time"

	"community-moderation/pkg/cache"
	"community-moderation/pkg/models/db"
)

// cacheMiddleware keeps the hot active-ban lookup out of the database.
// Only positive hits are cached; the row still carries expires_at, so
// effective-state derivation stays correct for cached entries.
type cacheMiddleware struct {
	Repository
	cache *cache.SimpleCache
}

var activeBanKey = "ab:"

func (c *cacheMiddleware) GetActiveBan(ctx context.Context, communityID, bannedUserID string) (*db.CommunityBan, error) {
	key := activeBanKey + communityID + ":" + bannedUserID
	if cached, ok := c.cache.Get(key); ok {
		ban := cached.(db.CommunityBan)
		if ban.EffectiveActive(time.Now()) {
			return &ban, nil
		}
		c.cache.Release(key)
	}

	ban, err := c.Repository.GetActiveBan(ctx, communityID, bannedUserID)
	if err == nil && ban != nil {
		c.cache.Set(key, *ban)
	}

	return ban, err
}

func (c *cacheMiddleware) CreateBan(ctx context.Context, ban db.CommunityBan) (db.CommunityBan, error) {
	created, err := c.Repository.CreateBan(ctx, ban)
	if err == nil {
		c.cache.Set(activeBanKey+created.CommunityID+":"+created.BannedUserID, created)
	}

	return created, err
}

func (c *cacheMiddleware) LiftBan(ctx context.Context, id, liftedBy string, at time.Time) (*db.CommunityBan, error) {
	ban, err := c.Repository.LiftBan(ctx, id, liftedBy, at)
	if err == nil && ban != nil {
		c.cache.Release(activeBanKey + ban.CommunityID + ":" + ban.BannedUserID)
	}

	return ban, err
}

func NewCache(repo Repository) Repository {
	return &cacheMiddleware{
		Repository: repo,
		cache:      cache.NewSimpleCache(1 * time.Hour),
	}
}
