package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/adapters/redis"
	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/DJA-prog/serialmacro/pkg/ports"
	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunRunStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTLExpiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.RunRecord{ID: "run-ttl", StartedAt: time.Now()}))
	assert.True(t, mr.Exists("test:run:run-ttl"))

	mr.FastForward(2 * time.Second)

	_, err := store.Load(ctx, "run-ttl")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	members, err := mr.ZMembers("test:runs")
	if err == nil {
		assert.Empty(t, members, "expired run pruned from the index")
	}
}

func TestRedisLocker_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunTransportLockerContract(t, redis.NewLocker(client, ""))
}

func TestRedisLocker_Expires(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	_, err := locker.TryLock(ctx, "ttyACM0", time.Second)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "ttyACM0", time.Second)
	assert.ErrorIs(t, err, domain.ErrRunActive)

	mr.FastForward(2 * time.Second)
	unlock, err := locker.TryLock(ctx, "ttyACM0", time.Second)
	require.NoError(t, err)
	assert.NoError(t, unlock(ctx))
}
