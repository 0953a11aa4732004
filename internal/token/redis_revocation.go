package token

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

// floor TTL so revoking an already-expired token still registers
const minRevokeTTL = time.Minute

// RedisRegistry is the shared-store variant of RevocationRegistry for
// multi-node deployments. Pruning is delegated to Redis key expiry.
type RedisRegistry struct {
	Client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{Client: client}
}

func (r *RedisRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl < minRevokeTTL {
		ttl = minRevokeTTL
	}
	return r.Client.Set(ctx, revokedKeyPrefix+jti, expiresAt.Unix(), ttl).Err()
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.Client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
