package blob

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, opts...), mr
}

func TestRedisStore_PutGetDelete(t *testing.T) {
	store, mr := setupRedisStore(t, WithPrefix("test"))
	ctx := context.Background()

	created := time.Unix(1700000000, 42)
	data := []byte{0x00, 0xff, 0x10, 'I', 'D', '3'}
	require.NoError(t, store.Put(ctx, "id-1", &Object{MIMEType: "audio/mpeg", Data: data, CreatedAt: created}))

	assert.True(t, mr.Exists("test:blob:id-1"))

	obj, err := store.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", obj.MIMEType)
	assert.Equal(t, data, obj.Data)
	assert.True(t, created.Equal(obj.CreatedAt))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Delete(ctx, "id-1"))
	_, err = store.Get(ctx, "id-1")
	assert.ErrorIs(t, err, ErrNotFound)

	n, _ = store.Len(ctx)
	assert.Equal(t, 0, n)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "id-2", &Object{MIMEType: "image/png", Data: []byte("png")}))
	assert.Equal(t, time.Minute, mr.TTL("studio:blob:id-2"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "id-2")
	assert.ErrorIs(t, err, ErrNotFound)

	n, _ := store.Len(ctx)
	assert.Equal(t, 0, n, "expired ids are pruned from the index on read")
}

func TestRedisStore_BacksRegistry(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	reg := NewRegistry(WithStore(store))

	ref, err := reg.CreateObjectURL(ctx, "video/mp4", []byte("ftypmp42"))
	require.NoError(t, err)

	// A second registry sharing the store can serve the bytes.
	replica := NewRegistry(WithStore(store))
	obj, err := replica.Lookup(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", obj.MIMEType)

	require.NoError(t, reg.RevokeObjectURL(ctx, ref))
	_, err = replica.Lookup(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ClosedClient(t *testing.T) {
	store, _ := setupRedisStore(t)
	require.NoError(t, store.Close())

	err := store.Put(context.Background(), "x", &Object{})
	assert.Error(t, err)
	_, err = store.Len(context.Background())
	assert.Error(t, err)
}

func TestRedisStore_RetainRestoresExpiredObject(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()
	reg := NewRegistry(WithStore(store))
	data := []byte("RIFF....WAVEfmt ")

	first, err := reg.CreateObjectURL(ctx, "audio/wav", data)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = reg.Lookup(ctx, first)
	require.ErrorIs(t, err, ErrNotFound, "the TTL dropped the object")

	second, err := reg.CreateObjectURL(ctx, "audio/wav", data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, reg.Holders(second))

	obj, err := reg.Lookup(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, data, obj.Data)
	id, _ := reg.ID(second)
	assert.Equal(t, time.Minute, mr.TTL("studio:blob:"+id), "retaining restarts the TTL")
}
