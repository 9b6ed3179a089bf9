// Package live implements live delivery (spec §4.6): a per-process
// connection registry layered over a cross-process Redis pub/sub channel, so
// an event persisted by any drain worker replica reaches every subscribed
// socket on every API replica.
package live

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/pulsewire/pulse/internal/domain/event"
	"github.com/pulsewire/pulse/pkg/logger"
)

func channelName(projectID string) string { return "events-live:" + projectID }

// Broker publishes persisted events onto, and subscribes sockets to, the
// per-project Redis pub/sub channel.
type Broker struct {
	client *redis.Client
	log    *logger.Logger
}

func NewBroker(client *redis.Client, log *logger.Logger) *Broker {
	if log == nil {
		log = logger.NewDefault("live")
	}
	return &Broker{client: client, log: log}
}

// Publish is best-effort: persistence has already succeeded by the time this
// is called, so a publish failure is logged and swallowed (spec §7).
func (b *Broker) Publish(ctx context.Context, projectID string, msg event.LivePush) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal live push: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(projectID), data).Err(); err != nil {
		b.log.Warnf("publish live event for project %s: %v", projectID, err)
		return err
	}
	return nil
}

// Subscription wraps a single project channel subscription. Close is
// idempotent and never returns an error, per spec §4.6's "closing a broker
// subscription MUST NOT propagate errors".
type Subscription struct {
	pubsub *redis.PubSub
}

// Subscribe opens a subscription to a single project's channel.
func (b *Broker) Subscribe(ctx context.Context, projectID string) *Subscription {
	return &Subscription{pubsub: b.client.Subscribe(ctx, channelName(projectID))}
}

// Channel returns the stream of raw JSON payloads received on the
// subscription.
func (s *Subscription) Channel() <-chan *redis.Message {
	return s.pubsub.Channel()
}

func (s *Subscription) Close() {
	_ = s.pubsub.Close()
}
