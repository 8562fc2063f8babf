package redisclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client, err := NewRedisClient(context.Background(), addr, "", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPayloadOf(t *testing.T) {
	assert.Equal(t, []byte("x"), payloadOf(map[string]any{payloadField: "x"}))
	assert.Equal(t, []byte("y"), payloadOf(map[string]any{payloadField: []byte("y")}))
	assert.Nil(t, payloadOf(map[string]any{"other": "z"}))
}

func TestLockKey(t *testing.T) {
	id := uuid.MustParse("7b0c2c43-2f55-4a57-9d0e-f4f1b5a6b0a1")
	assert.Equal(t, "lock:provider:7b0c2c43-2f55-4a57-9d0e-f4f1b5a6b0a1", lockKey(id))
}

func TestProviderLock_SerializesHolders(t *testing.T) {
	client := testClient(t)
	locker := NewRedisProviderLocker(client, 5*time.Second, 5*time.Second)
	provider := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithProviderLock(context.Background(), provider, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestProviderLock_GivesUpAfterWait(t *testing.T) {
	client := testClient(t)
	provider := uuid.New()
	holder := NewRedisProviderLocker(client, 5*time.Second, 0)
	waiter := NewRedisProviderLocker(client, 5*time.Second, 100*time.Millisecond)

	release := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		_ = holder.WithProviderLock(context.Background(), provider, func(ctx context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	err := waiter.WithProviderLock(context.Background(), provider, func(ctx context.Context) error {
		return errors.New("must not run")
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	close(release)
}

func TestCache_GenerationGuardsStaleWrites(t *testing.T) {
	client := testClient(t)
	cache := NewCache(client)
	ctx := context.Background()
	key := "test:cache:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key, genKey(key)) })

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	gen, err := cache.Generation(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	stored, err := cache.SetIfGeneration(ctx, key, gen, []byte("value"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, cache.Invalidate(ctx, key))
	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err = cache.SetIfGeneration(ctx, key, gen, []byte("stale"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored, "value read before the invalidation is rejected")

	gen, err = cache.Generation(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	stored, err = cache.SetIfGeneration(ctx, key, gen, []byte("fresh"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
}

// pagedPending serves unacked messages in pages of size, like XREADGROUP with
// an explicit id.
type pagedPending struct {
	ids   []string
	acked map[string]bool
	size  int
	calls int
}

func (p *pagedPending) Pending(ctx context.Context, after string) ([]StreamMessage, error) {
	p.calls++
	var out []StreamMessage
	for _, id := range p.ids {
		if p.acked[id] || (after != "0" && id <= after) {
			continue
		}
		out = append(out, StreamMessage{ID: id})
		if len(out) == p.size {
			break
		}
	}
	return out, nil
}

func TestDrainPending_WalksEveryPage(t *testing.T) {
	p := &pagedPending{acked: map[string]bool{}, size: 3}
	for i := 1; i <= 8; i++ {
		p.ids = append(p.ids, fmt.Sprintf("1-%d", i))
	}

	var seen []string
	err := drainPending(context.Background(), p, func(msg StreamMessage) {
		seen = append(seen, msg.ID)
		if msg.ID != "1-4" {
			p.acked[msg.ID] = true
		}
	})
	require.NoError(t, err)
	assert.Equal(t, p.ids, seen, "every page is replayed")
	assert.Equal(t, 4, p.calls)

	seen = nil
	require.NoError(t, drainPending(context.Background(), p, func(msg StreamMessage) {
		seen = append(seen, msg.ID)
	}))
	assert.Equal(t, []string{"1-4"}, seen, "a failed message is retried on the next drain")
}

func TestDrainPending_StopsOnError(t *testing.T) {
	err := drainPending(context.Background(), failingPending{}, func(StreamMessage) {
		t.Fatal("no message expected")
	})
	assert.Error(t, err)
}

type failingPending struct{}

func (failingPending) Pending(ctx context.Context, after string) ([]StreamMessage, error) {
	return nil, errors.New("connection reset")
}

func TestStream_PublishConsumeAck(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	stream := "test:stream:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	consumer := NewStreamConsumer(client, stream, "workers", "w1")
	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, consumer.EnsureGroup(ctx), "existing group is fine")

	pub := NewStreamPublisher(client, stream)
	require.NoError(t, pub.Publish(ctx, []byte(`{"n":1}`)))

	msgs, err := consumer.Next(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte(`{"n":1}`), msgs[0].Payload)

	pending, err := consumer.Pending(ctx, "0")
	require.NoError(t, err)
	require.Len(t, pending, 1, "unacked message is redelivered to its consumer")

	require.NoError(t, consumer.Ack(ctx, msgs[0].ID))
	pending, err = consumer.Pending(ctx, "0")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
