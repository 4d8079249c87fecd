package access

import (
	"context"
	"fmt"
	"time"

	pkgredis "github.com/intercity-tours/booking/pkg/redis"
)

// Revoker invalidates issued ticket tokens. Tokens are stateless, so
// cancellation writes a denylist entry checked on every verify.
type Revoker interface {
	Revoke(ctx context.Context, ticketID string) error
	IsRevoked(ctx context.Context, ticketID string) (bool, error)
}

// RedisRevoker keeps the denylist in Redis with a TTL matching the
// longest token lifetime.
type RedisRevoker struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisRevoker creates a new RedisRevoker.
func NewRedisRevoker(client *pkgredis.Client, ttl time.Duration) *RedisRevoker {
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisRevoker{client: client, ttl: ttl}
}

func revokedKey(ticketID string) string {
	return fmt.Sprintf("ticket:revoked:%s", ticketID)
}

// Revoke denylists every token issued for the ticket.
func (r *RedisRevoker) Revoke(ctx context.Context, ticketID string) error {
	if err := r.client.Set(ctx, revokedKey(ticketID), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke ticket token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the ticket's tokens are denylisted.
func (r *RedisRevoker) IsRevoked(ctx context.Context, ticketID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(ticketID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check ticket revocation: %w", err)
	}
	return n > 0, nil
}

// NoOpRevoker is used in tests and when no Redis is configured.
type NoOpRevoker struct{}

func (NoOpRevoker) Revoke(ctx context.Context, ticketID string) error { return nil }

func (NoOpRevoker) IsRevoked(ctx context.Context, ticketID string) (bool, error) {
	return false, nil
}
