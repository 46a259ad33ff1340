package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreWithClient(client, time.Hour, nil), mr
}

func TestRedisStore_GetMissingReturnsIdle(t *testing.T) {
	store, _ := newTestStore(t)

	conv, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), conv.UserID)
	assert.Equal(t, types.StateIdle, conv.State)
	assert.Equal(t, uuid.Nil, conv.OrderID)
}

func TestRedisStore_PutThenGetRoundTrips(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	orderID := uuid.New()
	err := store.Put(ctx, types.Conversation{
		UserID:  42,
		State:   types.StateAwaitingLocation,
		OrderID: orderID,
		Tier:    3,
	})
	require.NoError(t, err)

	conv, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateAwaitingLocation, conv.State)
	assert.Equal(t, orderID, conv.OrderID)
	assert.Equal(t, types.TierID(3), conv.Tier)
	assert.False(t, conv.UpdatedAt.IsZero())
}

func TestRedisStore_PutSetsTTL(t *testing.T) {
	store, mr := newTestStore(t)

	err := store.Put(context.Background(), types.Conversation{UserID: 42, State: types.StateAwaitingPayment})
	require.NoError(t, err)

	ttl := mr.TTL("conv:42")
	assert.Equal(t, time.Hour, ttl)
}

func TestRedisStore_ExpiredConversationIsIdle(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, types.Conversation{UserID: 42, State: types.StateAwaitingPayment}))
	mr.FastForward(2 * time.Hour)

	conv, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateIdle, conv.State)
}

func TestRedisStore_ResetReturnsToIdle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, types.Conversation{UserID: 42, State: types.StateDelivering}))
	require.NoError(t, store.Reset(ctx, 42))

	conv, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateIdle, conv.State)
}

func TestRedisStore_ResetMissingIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Reset(context.Background(), 999))
}

func TestRedisStore_CorruptRecordIsDropped(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("conv:42", "{not json"))

	conv, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, types.StateIdle, conv.State)
	assert.False(t, mr.Exists("conv:42"))
}

func TestRedisStore_UsersAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, types.Conversation{UserID: 1, State: types.StateAwaitingPayment}))
	require.NoError(t, store.Put(ctx, types.Conversation{UserID: 2, State: types.StateDelivering}))

	c1, err := store.Get(ctx, 1)
	require.NoError(t, err)
	c2, err := store.Get(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, types.StateAwaitingPayment, c1.State)
	assert.Equal(t, types.StateDelivering, c2.State)
}
