package registration

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"obconnect/internal/bankprofile"
	dErrors "obconnect/pkg/domain-errors"
)

// TokenCache stores access tokens per registration group with a TTL, so the
// token endpoint is only hit on expiry.
type TokenCache interface {
	// Get returns the cached token or a CodeNotFound error when absent or
	// expired.
	Get(ctx context.Context, group bankprofile.RegistrationGroup) (string, error)
	Set(ctx context.Context, group bankprofile.RegistrationGroup, token string, ttl time.Duration) error
}

// MemoryTokenCache is the single-instance fallback when Redis is not
// configured.
type MemoryTokenCache struct {
	mu     sync.Mutex
	tokens map[bankprofile.RegistrationGroup]cachedToken
	now    func() time.Time
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{
		tokens: make(map[bankprofile.RegistrationGroup]cachedToken),
		now:    time.Now,
	}
}

func (c *MemoryTokenCache) Get(_ context.Context, group bankprofile.RegistrationGroup) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.tokens[group]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.tokens, group)
		return "", dErrors.New(dErrors.CodeNotFound, "no cached token for group "+string(group))
	}
	return entry.token, nil
}

func (c *MemoryTokenCache) Set(_ context.Context, group bankprofile.RegistrationGroup, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[group] = cachedToken{token: token, expiresAt: c.now().Add(ttl)}
	return nil
}

const tokenKeyPrefix = "obconnect:token:"

// RedisTokenCache shares access tokens across connector instances. TTL
// enforcement is delegated to Redis key expiry.
type RedisTokenCache struct {
	client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

func (c *RedisTokenCache) Get(ctx context.Context, group bankprofile.RegistrationGroup) (string, error) {
	token, err := c.client.Get(ctx, tokenKeyPrefix+string(group)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", dErrors.New(dErrors.CodeNotFound, "no cached token for group "+string(group))
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "token cache read")
	}
	return token, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, group bankprofile.RegistrationGroup, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, tokenKeyPrefix+string(group), token, ttl).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "token cache write")
	}
	return nil
}
