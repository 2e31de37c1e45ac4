package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AcquireLock takes a best-effort distributed lock via SET NX. It returns
// false when another holder owns the key. The lock expires after ttl so a
// crashed worker cannot wedge the batch forever.
func AcquireLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (bool, error) {
	ok, err := client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("platform/cache: acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// ReleaseLock drops the lock key.
func ReleaseLock(ctx context.Context, client *redis.Client, key string) error {
	if err := client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("platform/cache: release lock %s: %w", key, err)
	}
	return nil
}
