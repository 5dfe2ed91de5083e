package revocation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *bytes.Buffer) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var logs bytes.Buffer
	store := NewRedisStore(client, time.Hour, time.Second, zerolog.New(&logs))
	return store, mr, &logs
}

func TestRedisStore_RevokeThenIsRevoked(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	assert.False(t, store.IsRevoked(ctx, "token-a"))

	store.Revoke(ctx, "token-a")

	assert.True(t, store.IsRevoked(ctx, "token-a"))
	assert.False(t, store.IsRevoked(ctx, "token-b"))

	val, err := mr.Get("blacklist:token-a")
	require.NoError(t, err)
	assert.Equal(t, "blacklisted", val)
	assert.Equal(t, time.Hour, mr.TTL("blacklist:token-a"))
}

func TestRedisStore_RevokeIsIdempotent(t *testing.T) {
	store, mr, logs := newTestStore(t)
	ctx := context.Background()

	store.Revoke(ctx, "token-a")
	store.Revoke(ctx, "token-a")

	assert.True(t, store.IsRevoked(ctx, "token-a"))
	assert.Len(t, mr.Keys(), 1)
	assert.Empty(t, logs.String())
}

func TestRedisStore_EntryExpires(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	store.Revoke(ctx, "token-a")
	mr.FastForward(time.Hour + time.Second)

	assert.False(t, store.IsRevoked(ctx, "token-a"))
}

func TestRedisStore_ForeignValueIsNotRevocation(t *testing.T) {
	store, mr, _ := newTestStore(t)

	require.NoError(t, mr.Set("blacklist:token-a", "something-else"))

	assert.False(t, store.IsRevoked(context.Background(), "token-a"))
}

func TestRedisStore_EmptyToken(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	store.Revoke(ctx, "")

	assert.False(t, store.IsRevoked(ctx, ""))
	assert.Empty(t, mr.Keys())
}

func TestRedisStore_FailsOpenWhenUnavailable(t *testing.T) {
	store, mr, logs := newTestStore(t)
	ctx := context.Background()

	store.Revoke(ctx, "token-a")
	mr.Close()

	assert.False(t, store.IsRevoked(ctx, "token-a"))
	assert.Contains(t, logs.String(), "treating token as not revoked")
}

func TestRedisStore_RevokeSwallowsErrors(t *testing.T) {
	store, mr, logs := newTestStore(t)
	mr.Close()

	assert.NotPanics(t, func() {
		store.Revoke(context.Background(), "token-a")
	})
	assert.Contains(t, logs.String(), "blacklist token failed")
}

func TestRedisStore_FailsOpenOnCommandError(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	store.Revoke(ctx, "token-a")
	mr.SetError("ERR simulated outage")

	assert.False(t, store.IsRevoked(ctx, "token-a"))

	mr.SetError("")
	assert.True(t, store.IsRevoked(ctx, "token-a"))
}

func TestRedisStore_FailsOpenOnTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("blacklist:token-a", "blacklisted"))

	store := NewRedisStore(client, time.Hour, time.Nanosecond, zerolog.Nop())
	assert.False(t, store.IsRevoked(context.Background(), "token-a"))
}
