// Package buffer implements the durable buffer adapter over Redis Streams:
// append/consume/ack on a named stream with consumer groups, providing
// at-least-once delivery with redelivery of un-acked messages.
package buffer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrUnavailable is returned when the buffer cannot accept or serve records;
// callers (the ingest coordinator) treat this as a signal to fall back to a
// direct write.
var ErrUnavailable = errors.New("buffer unavailable")

// Record is one buffered event payload, keyed by project so the drain
// worker can attach it to the right tenant.
type Record struct {
	ProjectID string
	Data      string // JSON payload, including an ISO-8601 UTC timestamp field
}

// Delivered is one message read off the stream, not yet acknowledged.
type Delivered struct {
	ID        string
	ProjectID string
	Data      string
}

// Buffer is the durable buffer adapter contract (spec §4.2).
type Buffer interface {
	EnsureGroup(ctx context.Context) error
	AppendBatch(ctx context.Context, records []Record) ([]string, error)
	Consume(ctx context.Context, consumer string, count int64, block time.Duration) ([]Delivered, error)
	Ack(ctx context.Context, ids []string) error
}

// RedisBuffer is the production Buffer backed by a single Redis stream and
// consumer group. The group name is stable ("event_workers" by default);
// EnsureGroup is idempotent and tolerates "group already exists" (BUSYGROUP).
type RedisBuffer struct {
	client *redis.Client
	stream string
	group  string
}

func New(client *redis.Client, stream, group string) *RedisBuffer {
	return &RedisBuffer{client: client, stream: stream, group: group}
}

// EnsureGroup creates the consumer group at the tail of the stream if it does
// not already exist. "BUSYGROUP" is treated as success.
func (b *RedisBuffer) EnsureGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.stream, b.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// AppendBatch appends every record to the stream in a single pipelined,
// all-or-nothing transaction: either every XADD commits, or none does. The
// caller (ingest coordinator) must treat any error here as total failure and
// fall back to a direct write, never a partial buffer success.
func (b *RedisBuffer) AppendBatch(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	cmds, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: b.stream,
				Values: map[string]interface{}{
					"project_id": r.ProjectID,
					"data":       r.Data,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, ErrUnavailable
	}

	ids := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		addCmd, ok := cmd.(*redis.StringCmd)
		if !ok {
			return nil, ErrUnavailable
		}
		id, err := addCmd.Result()
		if err != nil {
			return nil, ErrUnavailable
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Consume reads up to count undelivered messages for the given consumer
// within the shared group, blocking up to block for new entries.
func (b *RedisBuffer) Consume(ctx context.Context, consumer string, count int64, block time.Duration) ([]Delivered, error) {
	res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: consumer,
		Streams:  []string{b.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var out []Delivered
	for _, stream := range res {
		for _, msg := range stream.Messages {
			d := Delivered{ID: msg.ID}
			if v, ok := msg.Values["project_id"].(string); ok {
				d.ProjectID = v
			}
			if v, ok := msg.Values["data"].(string); ok {
				d.Data = v
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// Ack acknowledges message ids within the shared group. Implementations MUST
// call this for both successfully persisted and poison messages, per spec
// §4.3's "never stall the queue on a single bad message" rule.
func (b *RedisBuffer) Ack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return b.client.XAck(ctx, b.stream, b.group, ids...).Err()
}
