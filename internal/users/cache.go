package users

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fastsns/sns-backend/pkg/db/models"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/redis"
)

const defaultCacheTTL = 3 * 24 * time.Hour

// cacheStore is the slice of the Redis client the cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	UserCacheKey(userID string) string
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUserName(ctx context.Context, userName string) (*models.User, error)
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
}

// CachedRepository is a read-through cache over the users repository. Cache
// failures degrade to database reads; they never fail the lookup.
type CachedRepository struct {
	repo  userStore
	store cacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedRepository wraps a users repo with a Redis read-through cache.
func NewCachedRepository(repo userStore, store cacheStore, logg *logger.Logger) *CachedRepository {
	return &CachedRepository{
		repo:  repo,
		store: store,
		ttl:   defaultCacheTTL,
		logg:  logg,
	}
}

// FindByID consults the cache first and falls back to the repo on miss.
func (c *CachedRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if c.store != nil {
		key := c.store.UserCacheKey(id.String())
		raw, err := c.store.Get(ctx, key)
		if err == nil && raw != "" {
			var user models.User
			if unmarshalErr := json.Unmarshal([]byte(raw), &user); unmarshalErr == nil {
				return &user, nil
			}
			// not decodable anymore, drop the entry
			_ = c.store.Del(ctx, key)
		} else if err != nil && !redis.IsNil(err) && c.logg != nil {
			c.logg.Warn(ctx, "user cache read failed")
		}
	}

	user, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.put(ctx, user)
	return user, nil
}

// Exists reports whether the user is known, consulting the cache first.
func (c *CachedRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := c.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindByUserName delegates to the repo and primes the per-id cache entry so
// the follow-up token-authenticated lookups hit the cache.
func (c *CachedRepository) FindByUserName(ctx context.Context, userName string) (*models.User, error) {
	user, err := c.repo.FindByUserName(ctx, userName)
	if err != nil {
		return nil, err
	}
	c.put(ctx, user)
	return user, nil
}

// Create inserts through the repo and primes the cache with the new row.
func (c *CachedRepository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user, err := c.repo.Create(ctx, dto)
	if err != nil {
		return nil, err
	}
	c.put(ctx, user)
	return user, nil
}

// Invalidate drops the cached row for the given user.
func (c *CachedRepository) Invalidate(ctx context.Context, id uuid.UUID) {
	if c.store == nil {
		return
	}
	_ = c.store.Del(ctx, c.store.UserCacheKey(id.String()))
}

func (c *CachedRepository) put(ctx context.Context, user *models.User) {
	if c.store == nil || user == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.store.UserCacheKey(user.ID.String()), string(raw), c.ttl); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "user cache write failed")
	}
}
