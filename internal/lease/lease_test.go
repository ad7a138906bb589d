package lease

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/testutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leaser interface {
	TryAcquire(ctx context.Context) (func(), bool, error)
}

func assertExclusive(t *testing.T, a, b leaser) {
	t.Helper()
	ctx := context.Background()

	release, ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lease must be exclusive")

	release()

	release2, ok, err := b.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok, "lease must be free after release")
	release2()
}

func TestLocal(t *testing.T) {
	l := NewLocal()
	assertExclusive(t, l, l)
}

func TestPostgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	id := time.Now().UnixNano()
	assertExclusive(t, NewPostgres(pool, id), NewPostgres(pool, id))
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping Redis tests: %v", err)
	}

	key := "lease:test:" + uuid.NewString()
	assertExclusive(t, NewRedis(client, key, time.Minute), NewRedis(client, key, time.Minute))

	t.Run("expires without release", func(t *testing.T) {
		short := NewRedis(client, key+":ttl", 50*time.Millisecond)
		_, ok, err := short.TryAcquire(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		time.Sleep(120 * time.Millisecond)
		release, ok, err := short.TryAcquire(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		release()
	})
}
