package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/deprebuddy/pkg/adapters/redis"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	s := domain.NewSession("session-ttl", time.Now())
	s.Stage = domain.StageAssessment

	// 1. Save
	require.NoError(t, store.Save(ctx, s))

	// 2. Verify List (immediately)
	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "session-ttl")

	// 3. Fast Forward time in miniredis (for Key Expiration)
	mr.FastForward(2 * time.Second)

	// 4. Verify Load (should fail)
	_, err = store.Load(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// 5. Verify List (lazily cleaned up). The index score uses wall clock time.
	time.Sleep(1200 * time.Millisecond)

	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewSession("my-session", time.Now())))

	assert.True(t, mr.Exists("custom:app:s:my-session"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:_index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, list, "my-session")
}

func TestRedisStore_StageIsStoredAsText(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	s := domain.NewSession("textual", time.Now())
	s.Stage = domain.StageResource
	require.NoError(t, store.Save(ctx, s))

	raw, err := mr.Get(redis.DefaultPrefix + "s:textual")
	require.NoError(t, err)
	assert.Contains(t, raw, `"stage":"resource"`)
}

func TestRedisStore_IDsCannotClobberIndexOrLocks(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	locker := redis.NewLocker(client, redis.DefaultPrefix)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "a", 5*time.Second)
	require.NoError(t, err)
	defer unlock(ctx)

	for _, id := range []string{"a", "index", "_index", "lock:a", "_lock:a"} {
		require.NoError(t, store.Save(ctx, domain.NewSession(id, time.Now())), "save %s", id)
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "index", "_index", "lock:a", "_lock:a"}, ids)

	// The lock for "a" is still the locker's token, not a session document.
	raw, err := mr.Get(redis.DefaultPrefix + "_lock:a")
	require.NoError(t, err)
	assert.NotContains(t, raw, "stage")
}
