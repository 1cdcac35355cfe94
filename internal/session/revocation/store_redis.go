package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTRL shares the list across instances. Keys carry the token's remaining
// lifetime as their TTL, so nothing needs sweeping.
type RedisTRL struct {
	client *redis.Client
	options
}

func NewRedisTRL(client *redis.Client, opts ...Option) *RedisTRL {
	return &RedisTRL{client: client, options: buildOptions(opts)}
}

func (t *RedisTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if err := t.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (t *RedisTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	defer t.metrics.observe("redis", time.Now())

	n, err := t.client.Exists(ctx, revokedTokenKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}
