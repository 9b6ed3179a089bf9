// Package worker implements the drain worker (spec §4.3): a single
// long-running loop per replica that drains the durable buffer, bulk-writes
// to the raw event store, publishes to the live channel, and periodically
// refreshes the current hour's rollup.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pulsewire/pulse/internal/app/core/service"
	"github.com/pulsewire/pulse/internal/app/rollup"
	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/event"
	"github.com/pulsewire/pulse/internal/platform/buffer"
	"github.com/pulsewire/pulse/pkg/logger"
)

const (
	consumeCount = 200
)

// insertRetryPolicy tolerates brief database blips (connection reset,
// failover) without sending a whole batch back through redelivery.
var insertRetryPolicy = service.RetryPolicy{
	Attempts:       3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
	Multiplier:     2,
}

// Publisher is the live-delivery broadcast side the drain worker feeds after
// every persisted batch. Its failures are logged, never propagated (spec §7,
// "broker errors in live delivery are silently swallowed per subscription").
type Publisher interface {
	Publish(ctx context.Context, projectID string, msg event.LivePush) error
}

// Worker drains one shared buffer consumer group as a distinct consumer.
type Worker struct {
	buf            buffer.Buffer
	events         storage.EventStore
	rollups        *rollup.Engine
	publisher      Publisher
	log            *logger.Logger
	consumeBlock   time.Duration
	rollupInterval time.Duration

	consumerName string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a drain worker consumer name from the host and process id, per
// spec §4.3 step 1.
func New(buf buffer.Buffer, events storage.EventStore, rollups *rollup.Engine, publisher Publisher, consumeBlock, rollupInterval time.Duration, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.NewDefault("worker")
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return &Worker{
		buf:            buf,
		events:         events,
		rollups:        rollups,
		publisher:      publisher,
		log:            log,
		consumeBlock:   consumeBlock,
		rollupInterval: rollupInterval,
		consumerName:   fmt.Sprintf("%s-%d", host, os.Getpid()),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

func (w *Worker) Name() string { return "drain-worker" }

// Start ensures the consumer group exists and launches the main loop in the
// background. It returns once the group is ready, not once the loop exits.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.buf.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	go w.run()
	return nil
}

// Stop signals the loop to finish its current batch and exit, then waits for
// it to do so or for ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	select {
	case <-w.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.doneCh)

	lastRollup := time.Now()
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		if err := w.drainOnce(context.Background()); err != nil {
			w.log.Errorf("drain batch: %v", err)
		}

		if time.Since(lastRollup) >= w.rollupInterval {
			if err := w.rollups.RecomputeCurrentHour(context.Background()); err != nil {
				w.log.Errorf("recompute current hour: %v", err)
			}
			lastRollup = time.Now()
		}
	}
}

// drainOnce consumes one batch, persists it, publishes it, and acks every id,
// malformed records included, once the insert has succeeded (spec §4.3 step
// 2, poison-message tolerance). If the insert fails, no id is acked.
func (w *Worker) drainOnce(ctx context.Context) error {
	delivered, err := w.buf.Consume(ctx, w.consumerName, consumeCount, w.consumeBlock)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	if len(delivered) == 0 {
		return nil
	}

	var (
		rows []event.Event
		acks []string
	)
	pushes := make(map[string][]event.LivePush, len(delivered))

	for _, d := range delivered {
		acks = append(acks, d.ID)

		var payload event.BufferPayload
		if err := json.Unmarshal([]byte(d.Data), &payload); err != nil {
			w.log.Warnf("discarding malformed buffer record %s: %v", d.ID, err)
			continue
		}

		rows = append(rows, event.Event{
			ProjectID:  d.ProjectID,
			EventUUID:  payload.EventUUID,
			EventName:  payload.EventName,
			DistinctID: payload.DistinctID,
			Properties: payload.Properties,
			SessionID:  payload.SessionID,
			PageURL:    payload.PageURL,
			Referrer:   payload.Referrer,
			UserAgent:  payload.UserAgent,
			IPHash:     payload.IPHash,
			Timestamp:  payload.Timestamp,
		})
		pushes[d.ProjectID] = append(pushes[d.ProjectID], event.LivePush{
			Event:      payload.EventName,
			DistinctID: payload.DistinctID,
			Properties: payload.Properties,
			Timestamp:  payload.Timestamp,
			ProjectID:  d.ProjectID,
		})
	}

	if len(rows) > 0 {
		err := service.Retry(ctx, insertRetryPolicy, func() error {
			return w.events.InsertBatch(ctx, rows)
		})
		if err != nil {
			// Persistence failed for the whole batch: do not ack, so the
			// group redelivers it. Poison rows already excluded above are
			// lost either way, which is the accepted tradeoff.
			return fmt.Errorf("insert batch: %w", err)
		}
	}

	if w.publisher != nil {
		for projectID, msgs := range pushes {
			for _, m := range msgs {
				if err := w.publisher.Publish(ctx, projectID, m); err != nil {
					w.log.Warnf("publish live event for project %s: %v", projectID, err)
				}
			}
		}
	}

	if err := w.buf.Ack(ctx, acks); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}
