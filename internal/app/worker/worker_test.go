package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/event"
	"github.com/pulsewire/pulse/internal/platform/buffer"
)

type fakeBuffer struct {
	toDeliver []buffer.Delivered
	acked     []string
	ackErr    error
}

func (f *fakeBuffer) EnsureGroup(ctx context.Context) error { return nil }

func (f *fakeBuffer) AppendBatch(ctx context.Context, records []buffer.Record) ([]string, error) {
	return nil, nil
}

func (f *fakeBuffer) Consume(ctx context.Context, consumer string, count int64, block time.Duration) ([]buffer.Delivered, error) {
	out := f.toDeliver
	f.toDeliver = nil
	return out, nil
}

func (f *fakeBuffer) Ack(ctx context.Context, ids []string) error {
	f.acked = append(f.acked, ids...)
	return f.ackErr
}

type fakeEventStore struct {
	storage.EventStore
	inserted  []event.Event
	insertErr error
}

func (s *fakeEventStore) InsertBatch(ctx context.Context, rows []event.Event) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, rows...)
	return nil
}

type fakePublisher struct {
	published []event.LivePush
}

func (p *fakePublisher) Publish(ctx context.Context, projectID string, msg event.LivePush) error {
	p.published = append(p.published, msg)
	return nil
}

func payload(t *testing.T, p event.BufferPayload) string {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return string(data)
}

func TestDrainOnceInsertsPublishesAndAcksWholeBatch(t *testing.T) {
	now := time.Now().UTC()
	buf := &fakeBuffer{toDeliver: []buffer.Delivered{
		{ID: "1-1", ProjectID: "proj1", Data: payload(t, event.BufferPayload{EventUUID: "a", EventName: "click", Timestamp: now})},
		{ID: "1-2", ProjectID: "proj1", Data: payload(t, event.BufferPayload{EventUUID: "b", EventName: "view", Timestamp: now})},
	}}
	store := &fakeEventStore{}
	pub := &fakePublisher{}

	w := New(buf, store, nil, pub, time.Second, time.Minute, nil)
	err := w.drainOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, store.inserted, 2)
	require.Len(t, pub.published, 2)
	require.ElementsMatch(t, []string{"1-1", "1-2"}, buf.acked)
}

func TestDrainOnceDiscardsMalformedRecordButStillAcksIt(t *testing.T) {
	buf := &fakeBuffer{toDeliver: []buffer.Delivered{
		{ID: "1-1", ProjectID: "proj1", Data: "not json"},
	}}
	store := &fakeEventStore{}
	pub := &fakePublisher{}

	w := New(buf, store, nil, pub, time.Second, time.Minute, nil)
	err := w.drainOnce(context.Background())
	require.NoError(t, err)

	require.Empty(t, store.inserted)
	require.Equal(t, []string{"1-1"}, buf.acked)
}

func TestDrainOnceDoesNotAckWhenInsertFails(t *testing.T) {
	now := time.Now().UTC()
	buf := &fakeBuffer{toDeliver: []buffer.Delivered{
		{ID: "1-1", ProjectID: "proj1", Data: payload(t, event.BufferPayload{EventUUID: "a", EventName: "click", Timestamp: now})},
	}}
	store := &fakeEventStore{insertErr: errors.New("db down")}
	pub := &fakePublisher{}

	w := New(buf, store, nil, pub, time.Second, time.Minute, nil)
	err := w.drainOnce(context.Background())
	require.Error(t, err)
	require.Empty(t, buf.acked, "a failed insert must leave the batch unacked for redelivery")
}

func TestDrainOnceWithNoDeliveredMessagesIsNoop(t *testing.T) {
	buf := &fakeBuffer{}
	store := &fakeEventStore{}
	w := New(buf, store, nil, &fakePublisher{}, time.Second, time.Minute, nil)

	err := w.drainOnce(context.Background())
	require.NoError(t, err)
	require.Empty(t, buf.acked)
}
