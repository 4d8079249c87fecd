package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/intercity-tours/booking/internal/domain"
	pkgredis "github.com/intercity-tours/booking/pkg/redis"
)

// RedisAvailabilityMirror keeps a per-tour hash of free-seat counts,
// one field per (departure, arrival) pair. The hash is refreshed after
// every committed mutation and expires on its own, so stale entries
// cannot outlive a forgotten tour. The database rows stay
// authoritative.
type RedisAvailabilityMirror struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisAvailabilityMirror creates a new RedisAvailabilityMirror.
func NewRedisAvailabilityMirror(client *pkgredis.Client, ttl time.Duration) *RedisAvailabilityMirror {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisAvailabilityMirror{client: client, ttl: ttl}
}

func tourKey(tourID string) string {
	return fmt.Sprintf("availability:%s", tourID)
}

func pairField(depStopID, arrStopID string) string {
	return fmt.Sprintf("%s:%s", depStopID, arrStopID)
}

// Mirror replaces the tour's hash with the given rows.
func (m *RedisAvailabilityMirror) Mirror(ctx context.Context, tourID string, rows []domain.AvailabilityRow) error {
	key := tourKey(tourID)

	pipe := m.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(rows) > 0 {
		values := make([]interface{}, 0, len(rows)*2)
		for _, row := range rows {
			values = append(values, pairField(row.DepStopID, row.ArrStopID), row.FreeSeats)
		}
		pipe.HSet(ctx, key, values...)
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror availability for tour %s: %w", tourID, err)
	}
	return nil
}

// Lookup returns the cached count for a pair. The second return is
// false on a cache miss.
func (m *RedisAvailabilityMirror) Lookup(ctx context.Context, tourID, depStopID, arrStopID string) (int, bool, error) {
	raw, err := m.client.HGet(ctx, tourKey(tourID), pairField(depStopID, arrStopID)).Result()
	if err != nil {
		return 0, false, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability entry for tour %s: %w", tourID, err)
	}
	return count, true, nil
}
