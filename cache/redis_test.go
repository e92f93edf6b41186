package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/models"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), config.Redis{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return mr, store
}

func TestRedisStore_GetSetDel(t *testing.T) {
	mr, store := newRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "quest:1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "quest:1", []byte(`{"id":1}`), 90*time.Second))
	got, err := store.Get(ctx, "quest:1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(got))
	assert.Equal(t, 90*time.Second, mr.TTL("quest:1"))

	mr.FastForward(91 * time.Second)
	_, err = store.Get(ctx, "quest:1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "quest:2", []byte("x"), time.Minute))
	require.NoError(t, store.Del(ctx, "quest:2"))
	assert.False(t, mr.Exists("quest:2"))
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), config.Redis{Addr: addr})
	assert.Error(t, err)

	_, err = NewRedisStore(context.Background(), config.Redis{})
	assert.Error(t, err)
}

func TestQuestCache_OverRedis(t *testing.T) {
	mr, store := newRedis(t)
	f := newFixture(t, store)
	ctx := context.Background()
	f.confirm(t, 3, 4)

	snap, err := f.cache.Get(ctx, f.questID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Steps[0].Requirement.CurrentValue)
	assert.Equal(t, DefaultTTL, mr.TTL(Key(f.questID)))

	cached, err := f.cache.Get(ctx, f.questID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.quests.finds)
	assert.Equal(t, models.StepContributers, cached.Steps[0].Type)

	f.cache.Invalidate(ctx, f.questID)
	assert.False(t, mr.Exists(Key(f.questID)))
}
