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

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHub(NewBroker(client, nil), nil)
}

type recordingSocket struct {
	received chan []byte
}

func newRecordingSocket() *recordingSocket {
	return &recordingSocket{received: make(chan []byte, 10)}
}

func (s *recordingSocket) Send(data []byte) error {
	s.received <- data
	return nil
}

func TestHubConnectDeliversBrokerMessagesToTheSocket(t *testing.T) {
	hub := newTestHub(t)
	sock := newRecordingSocket()

	sess := hub.Connect(context.Background(), "proj1", sock)
	defer sess.Disconnect()
	require.Equal(t, 1, hub.ConnectionCount("proj1"))

	require.Eventually(t, func() bool {
		return hub.broker.Publish(context.Background(), "proj1", event.LivePush{Event: "click", ProjectID: "proj1"}) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case data := <-sock.received:
		require.Contains(t, string(data), "click")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivered message")
	}
}

func TestSessionDisconnectRemovesSocketFromRegistry(t *testing.T) {
	hub := newTestHub(t)
	sock := newRecordingSocket()

	sess := hub.Connect(context.Background(), "proj1", sock)
	require.Equal(t, 1, hub.ConnectionCount("proj1"))

	sess.Disconnect()
	require.Equal(t, 0, hub.ConnectionCount("proj1"))
}
