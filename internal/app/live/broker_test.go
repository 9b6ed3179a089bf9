package live

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulse/internal/domain/event"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroker(client, nil)
}

func TestBrokerPublishDeliversToSubscribersOfTheSameProject(t *testing.T) {
	broker := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := broker.Subscribe(ctx, "proj1")
	defer sub.Close()

	other := broker.Subscribe(ctx, "proj2")
	defer other.Close()

	require.NoError(t, broker.Publish(ctx, "proj1", event.LivePush{Event: "click", ProjectID: "proj1"}))

	select {
	case msg := <-sub.Channel():
		require.Contains(t, msg.Payload, "click")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}

	select {
	case <-other.Channel():
		t.Fatal("proj2 subscriber must not receive proj1's message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	broker := newTestBroker(t)
	sub := broker.Subscribe(context.Background(), "proj1")
	require.NotPanics(t, func() {
		sub.Close()
		sub.Close()
	})
}
