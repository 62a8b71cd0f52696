package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tokmz/wsgate/pkg/queue"
	"github.com/tokmz/wsgate/pkg/queue/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTarget 可控制背压与故障的连接
type fakeTarget struct {
	mu       sync.Mutex
	id       string
	capacity int // 剩余可接收数量，<0 表示不限
	broken   error
	sent     []string
	closed   []int
}

func newTarget(id string, capacity int) *fakeTarget {
	return &fakeTarget{id: id, capacity: capacity}
}

func (t *fakeTarget) ClientID() string { return t.id }

func (t *fakeTarget) Send(payload []byte, compress bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.broken != nil {
		return t.broken
	}
	if t.capacity == 0 {
		return queue.ErrBackpressure
	}
	if t.capacity > 0 {
		t.capacity--
	}
	t.sent = append(t.sent, string(payload))
	return nil
}

func (t *fakeTarget) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = append(t.closed, code)
	return nil
}

func (t *fakeTarget) setCapacity(n int) {
	t.mu.Lock()
	t.capacity = n
	t.mu.Unlock()
}

func (t *fakeTarget) messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

func newQueue(t *testing.T, opts ...queue.Option) (*queue.Queue, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	q, err := queue.New(context.Background(), store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q, store
}

func TestSendDirect(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	target := newTarget("c1", -1)

	res, err := q.Send(ctx, target, []byte("hello"), false)
	require.NoError(t, err)
	assert.Equal(t, queue.Sent, res)
	assert.Equal(t, []string{"hello"}, target.messages())

	n, err := q.Len(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSendQueuesOnBackpressure(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	target := newTarget("c1", 0)

	for _, m := range []string{"a", "b", "c"} {
		res, err := q.Send(ctx, target, []byte(m), false)
		require.NoError(t, err)
		assert.Equal(t, queue.Queued, res)
	}

	n, err := q.Len(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Empty(t, target.messages())
}

func TestFlushPreservesOrder(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	target := newTarget("c1", 0)

	for _, m := range []string{"1", "2", "3", "4"} {
		_, err := q.Send(ctx, target, []byte(m), false)
		require.NoError(t, err)
	}

	// 只能接收两条，剩余的留在队列里
	target.setCapacity(2)
	sent, err := q.Flush(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"1", "2"}, target.messages())

	n, err := q.Len(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	target.setCapacity(-1)
	sent, err = q.Flush(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"1", "2", "3", "4"}, target.messages())

	n, err = q.Len(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushUnknownClient(t *testing.T) {
	q, _ := newQueue(t)
	sent, err := q.Flush(context.Background(), newTarget("nobody", -1))
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSendConnectionError(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t, queue.WithFatalCloseCode(4000))
	target := newTarget("c1", -1)
	target.broken = errors.New("socket gone")

	res, err := q.Send(ctx, target, []byte("x"), false)
	assert.Equal(t, queue.Failed, res)
	require.ErrorIs(t, err, queue.ErrConnection)
	assert.Equal(t, []int{4000}, target.closed)

	n, err := q.Len(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushConnectionErrorKeepsMessage(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	target := newTarget("c1", 0)

	_, err := q.Send(ctx, target, []byte("x"), false)
	require.NoError(t, err)

	target.broken = errors.New("reset")
	_, err = q.Flush(ctx, target)
	require.ErrorIs(t, err, queue.ErrConnection)
	assert.Equal(t, []int{queue.CloseConnectionError}, target.closed)

	n, err := q.Len(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStoreFailure(t *testing.T) {
	ctx := context.Background()
	q, store := newQueue(t)
	require.NoError(t, store.Close())

	res, err := q.Send(ctx, newTarget("c1", 0), []byte("x"), false)
	assert.Equal(t, queue.Failed, res)
	require.ErrorIs(t, err, queue.ErrQueue)
	assert.ErrorIs(t, err, queue.ErrStoreClosed)
}

func TestStrictOrdering(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		want   []string
	}{
		{name: "default sends directly", strict: false, want: []string{"late"}},
		{name: "strict queues behind backlog", strict: true, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			q, _ := newQueue(t, queue.WithStrictOrdering(tt.strict))
			target := newTarget("c1", 0)

			_, err := q.Send(ctx, target, []byte("early"), false)
			require.NoError(t, err)

			target.setCapacity(-1)
			_, err = q.Send(ctx, target, []byte("late"), false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, target.messages())

			_, err = q.Flush(ctx, target)
			require.NoError(t, err)
			if tt.strict {
				assert.Equal(t, []string{"early", "late"}, target.messages())
			} else {
				assert.Equal(t, []string{"late", "early"}, target.messages())
			}
		})
	}
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	frozen := time.Unix(1700000000, 0)
	q, store := newQueue(t, queue.WithClock(func() time.Time { return frozen }))
	target := newTarget("c1", 0)

	for i := 0; i < 3; i++ {
		_, err := q.Send(ctx, target, []byte{byte('a' + i)}, false)
		require.NoError(t, err)
	}

	var last int64
	for i := 0; i < 3; i++ {
		msg, err := store.Oldest(ctx, "c1")
		require.NoError(t, err)
		assert.Greater(t, msg.CreatedAt, last)
		last = msg.CreatedAt
		require.NoError(t, store.Delete(ctx, "c1", msg.ID))
	}
}

func TestNewSeedsFromStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Insert(ctx, &queue.Message{ClientID: "c9", Payload: []byte("kept"), CreatedAt: 1}))

	q, err := queue.New(ctx, store)
	require.NoError(t, err)
	defer q.Close()

	target := newTarget("c9", -1)
	sent, err := q.Flush(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"kept"}, target.messages())
}
