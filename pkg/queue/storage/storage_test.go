package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/wsgate/pkg/orm"
	"github.com/tokmz/wsgate/pkg/queue"
	"github.com/tokmz/wsgate/pkg/queue/storage"
)

// testStore 对任意 Store 实现执行同一组行为检查
func testStore(t *testing.T, store queue.Store) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		_, err := store.Oldest(ctx, "none")
		assert.ErrorIs(t, err, queue.ErrEmpty)

		n, err := store.Count(ctx, "none")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("OrderByCreatedAtThenID", func(t *testing.T) {
		rows := []*queue.Message{
			{ClientID: "a", Payload: []byte("second"), CreatedAt: 20},
			{ClientID: "a", Payload: []byte("first"), CreatedAt: 10},
			{ClientID: "a", Payload: []byte("third"), CreatedAt: 20, Compress: true},
			{ClientID: "b", Payload: []byte("other"), CreatedAt: 5},
		}
		for _, row := range rows {
			require.NoError(t, store.Insert(ctx, row))
			assert.NotZero(t, row.ID)
		}

		n, err := store.Count(ctx, "a")
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		ids, err := store.ClientIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)

		var got []string
		for {
			msg, err := store.Oldest(ctx, "a")
			if err != nil {
				require.ErrorIs(t, err, queue.ErrEmpty)
				break
			}
			got = append(got, string(msg.Payload))
			if string(msg.Payload) == "third" {
				assert.True(t, msg.Compress)
			}
			require.NoError(t, store.Delete(ctx, "a", msg.ID))
		}
		assert.Equal(t, []string{"first", "second", "third"}, got)

		ids, err = store.ClientIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids)
	})

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "b", 987654))
		n, err := store.Count(ctx, "b")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("Closed", func(t *testing.T) {
		require.NoError(t, store.Close())
		err := store.Insert(ctx, &queue.Message{ClientID: "a", Payload: []byte("x"), CreatedAt: 1})
		assert.ErrorIs(t, err, queue.ErrStoreClosed)
		_, err = store.Oldest(ctx, "b")
		assert.ErrorIs(t, err, queue.ErrStoreClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, storage.NewMemoryStore())
}

func TestMemoryStoreCopiesPayload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	payload := []byte("abc")
	require.NoError(t, store.Insert(ctx, &queue.Message{ClientID: "a", Payload: payload, CreatedAt: 1}))
	payload[0] = 'x'

	msg, err := store.Oldest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(msg.Payload))
}

func TestGormStore(t *testing.T) {
	cfg := orm.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "queue.db")
	cfg.LogLevel = 1

	db, err := orm.New(cfg, nil)
	require.NoError(t, err)

	store, err := storage.NewGormStore(db, storage.WithTableName("test_queue"))
	require.NoError(t, err)
	testStore(t, store)
}

func TestGormStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := orm.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "queue.db")
	cfg.LogLevel = 1

	db, err := orm.New(cfg, nil)
	require.NoError(t, err)
	store, err := storage.NewGormStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, &queue.Message{ClientID: "a", Payload: []byte("persisted"), CreatedAt: 1}))
	require.NoError(t, store.Close())

	db, err = orm.New(cfg, nil)
	require.NoError(t, err)
	store, err = storage.NewGormStore(db)
	require.NoError(t, err)
	defer store.Close()

	msg, err := store.Oldest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(msg.Payload))
}

func newRedisClient(t *testing.T) (*redis.Client, string) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "wsgate:test:" + t.Name() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})
	return client, prefix
}

func TestRedisStore(t *testing.T) {
	client, prefix := newRedisClient(t)
	testStore(t, storage.NewRedisStore(client, storage.WithKeyPrefix(prefix)))
}

func TestRedisStoreIndexUnderConcurrentDelete(t *testing.T) {
	client, prefix := newRedisClient(t)
	store := storage.NewRedisStore(client, storage.WithKeyPrefix(prefix))
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		first := &queue.Message{ClientID: "c", Payload: []byte("x"), CreatedAt: int64(round*2 + 1)}
		require.NoError(t, store.Insert(ctx, first))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Delete(ctx, "c", first.ID))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Insert(ctx, &queue.Message{ClientID: "c", Payload: []byte("y"), CreatedAt: int64(round*2 + 2)}))
		}()
		wg.Wait()

		n, err := store.Count(ctx, "c")
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		ids, err := store.ClientIDs(ctx)
		require.NoError(t, err)
		require.Contains(t, ids, "c", "round %d", round)

		msg, err := store.Oldest(ctx, "c")
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "c", msg.ID))
		ids, err = store.ClientIDs(ctx)
		require.NoError(t, err)
		require.NotContains(t, ids, "c")
	}
}
