// Package event holds the append-only Event domain model and the wire shapes
// it travels in across the buffer and the live channel (spec §3, §6).
package event

import (
	"encoding/json"
	"time"
)

// Event is inserted once, either by the ingest coordinator's fallback path
// or by the drain worker, and never updated. It is deleted only on project
// cascade.
type Event struct {
	ID         int64           `db:"id" json:"-"`
	ProjectID  string          `db:"project_id" json:"project_id"`
	EventUUID  string          `db:"event_uuid" json:"-"`
	EventName  string          `db:"event_name" json:"event"`
	DistinctID *string         `db:"distinct_id" json:"distinct_id,omitempty"`
	Properties json.RawMessage `db:"properties" json:"properties,omitempty"`
	SessionID  *string         `db:"session_id" json:"-"`
	PageURL    *string         `db:"page_url" json:"-"`
	Referrer   *string         `db:"referrer" json:"-"`
	UserAgent  *string         `db:"user_agent" json:"-"`
	IPHash     *string         `db:"ip_hash" json:"-"`
	Timestamp  time.Time       `db:"timestamp" json:"timestamp"`
	CreatedAt  time.Time       `db:"created_at" json:"-"`
}

// IngestItem is one event as submitted by an SDK batch, before project
// resolution and ip-hash computation.
type IngestItem struct {
	EventUUID  string          `json:"-"`
	EventName  string          `json:"event_name"`
	DistinctID *string         `json:"distinct_id,omitempty"`
	SessionID  *string         `json:"session_id,omitempty"`
	PageURL    *string         `json:"page_url,omitempty"`
	Referrer   *string         `json:"referrer,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
}

// BufferPayload is the JSON shape carried inside a buffer record's "data"
// field (spec §6 "Buffer wire format").
type BufferPayload struct {
	EventUUID  string          `json:"event_uuid"`
	EventName  string          `json:"event_name"`
	DistinctID *string         `json:"distinct_id,omitempty"`
	SessionID  *string         `json:"session_id,omitempty"`
	PageURL    *string         `json:"page_url,omitempty"`
	Referrer   *string         `json:"referrer,omitempty"`
	UserAgent  *string         `json:"user_agent,omitempty"`
	IPHash     *string         `json:"ip_hash,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// LivePush is the JSON message shape pushed over the websocket and carried on
// the live channel (spec §4.6, §6 "Channel wire format").
type LivePush struct {
	Event      string          `json:"event"`
	DistinctID *string         `json:"distinct_id,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	ProjectID  string          `json:"project_id"`
}
