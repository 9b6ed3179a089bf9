// Package ingest implements the ingest coordinator (spec §4.1): batch
// validation, project-key resolution, atomic buffer append, and the
// all-or-nothing fallback write.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewire/pulse/internal/app/auth"
	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/event"
	"github.com/pulsewire/pulse/internal/platform/buffer"
	"github.com/pulsewire/pulse/internal/pulseerr"
	"github.com/pulsewire/pulse/pkg/logger"
)

const (
	MinBatchSize    = 1
	MaxBatchSize    = 100
	MaxEventNameLen = 255
)

// Coordinator implements the Ingest Coordinator contract.
type Coordinator struct {
	projects storage.ProjectStore
	events   storage.EventStore
	buf      buffer.Buffer
	ipHasher *auth.IPHasher
	log      *logger.Logger
}

func New(projects storage.ProjectStore, events storage.EventStore, buf buffer.Buffer, ipHasher *auth.IPHasher, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewDefault("ingest")
	}
	return &Coordinator{projects: projects, events: events, buf: buf, ipHasher: ipHasher, log: log}
}

// Ingest validates a batch, resolves the project by its presented key, and
// appends the batch to the durable buffer; on buffer failure it falls back
// to a synchronous, all-or-nothing direct write.
func (c *Coordinator) Ingest(ctx context.Context, projectKey string, items []event.IngestItem, clientIP, clientAgent string) (accepted int, err error) {
	if len(items) < MinBatchSize || len(items) > MaxBatchSize {
		return 0, pulseerr.ValidationError("events", "batch size must be between 1 and 100")
	}
	for i := range items {
		if len(items[i].EventName) == 0 || len(items[i].EventName) > MaxEventNameLen {
			return 0, pulseerr.ValidationError("event_name", "required, max 255 chars")
		}
	}

	p, perr := c.projects.GetProjectByKeyHash(ctx, auth.HashProjectKey(projectKey))
	if perr != nil {
		return 0, pulseerr.Unauthorized("")
	}

	now := time.Now().UTC()
	var ipHash *string
	if clientIP != "" && c.ipHasher != nil {
		h := c.ipHasher.Hash(clientIP, now)
		ipHash = &h
	}

	records := make([]buffer.Record, len(items))
	rows := make([]event.Event, len(items))
	for i, item := range items {
		ts := now
		if item.Timestamp != nil {
			ts = item.Timestamp.UTC()
		}
		eventUUID := uuid.NewString()

		payload := event.BufferPayload{
			EventUUID:  eventUUID,
			EventName:  item.EventName,
			DistinctID: item.DistinctID,
			SessionID:  item.SessionID,
			PageURL:    item.PageURL,
			Referrer:   item.Referrer,
			Properties: item.Properties,
			Timestamp:  ts,
		}
		if clientAgent != "" {
			payload.UserAgent = &clientAgent
		}
		payload.IPHash = ipHash

		data, merr := json.Marshal(payload)
		if merr != nil {
			return 0, pulseerr.Internal("marshal event payload", merr)
		}
		records[i] = buffer.Record{ProjectID: p.ID, Data: string(data)}

		rows[i] = event.Event{
			ProjectID:  p.ID,
			EventUUID:  eventUUID,
			EventName:  item.EventName,
			DistinctID: item.DistinctID,
			Properties: item.Properties,
			SessionID:  item.SessionID,
			PageURL:    item.PageURL,
			Referrer:   item.Referrer,
			UserAgent:  payload.UserAgent,
			IPHash:     ipHash,
			Timestamp:  ts,
		}
	}

	if _, err := c.buf.AppendBatch(ctx, records); err == nil {
		return len(items), nil
	} else {
		c.log.Warnf("buffer append failed for project %s, falling back to direct write: %v", p.ID, err)
	}

	if err := c.events.InsertBatch(ctx, rows); err != nil {
		return 0, pulseerr.ServiceUnavailable("")
	}
	return len(items), nil
}
