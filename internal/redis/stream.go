package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// StreamPublisher appends payloads to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, payload []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

type StreamMessage struct {
	ID      string
	Payload []byte
}

// StreamConsumer reads a stream as one member of a consumer group.
type StreamConsumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	batch    int64
}

func NewStreamConsumer(client *redis.Client, stream, group, consumer string) *StreamConsumer {
	return &StreamConsumer{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    5 * time.Second,
		batch:    16,
	}
}

// EnsureGroup creates the stream and group if they do not exist yet.
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Pending returns one batch of messages delivered to this consumer but never
// acked, with ids after the given one. "0" starts from the beginning.
func (c *StreamConsumer) Pending(ctx context.Context, after string) ([]StreamMessage, error) {
	return c.read(ctx, after, -1)
}

// DrainPending hands every pending message to fn, page by page. Messages fn
// does not ack stay pending for the next drain.
func (c *StreamConsumer) DrainPending(ctx context.Context, fn func(StreamMessage)) error {
	return drainPending(ctx, c, fn)
}

type pendingReader interface {
	Pending(ctx context.Context, after string) ([]StreamMessage, error)
}

func drainPending(ctx context.Context, r pendingReader, fn func(StreamMessage)) error {
	after := "0"
	for {
		msgs, err := r.Pending(ctx, after)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		for _, msg := range msgs {
			fn(msg)
		}
		after = msgs[len(msgs)-1].ID
	}
}

// Next blocks for new messages. It returns an empty slice when the block
// timeout passes with nothing to read.
func (c *StreamConsumer) Next(ctx context.Context) ([]StreamMessage, error) {
	return c.read(ctx, ">", c.block)
}

func (c *StreamConsumer) read(ctx context.Context, start string, block time.Duration) ([]StreamMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, start},
		Count:    c.batch,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", c.stream, err)
	}

	var out []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			out = append(out, StreamMessage{ID: msg.ID, Payload: payloadOf(msg.Values)})
		}
	}
	return out, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", c.stream, err)
	}
	return nil
}

func payloadOf(values map[string]any) []byte {
	switch v := values[payloadField].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	default:
		return nil
	}
}
