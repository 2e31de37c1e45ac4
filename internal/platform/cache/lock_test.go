package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ok, err := AcquireLock(ctx, client, "credit:interest:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Second holder must be refused while the key lives.
	ok, err = AcquireLock(ctx, client, "credit:interest:lock", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, ReleaseLock(ctx, client, "credit:interest:lock"))

	ok, err = AcquireLock(ctx, client, "credit:interest:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAcquireLockExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ok, err := AcquireLock(ctx, client, "credit:interest:lock", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = AcquireLock(ctx, client, "credit:interest:lock", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}
