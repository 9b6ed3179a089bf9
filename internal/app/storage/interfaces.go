// Package storage declares the persistence contracts the analytics backend
// depends on, implemented concretely by internal/app/storage/postgres.
package storage

import (
	"context"
	"time"

	"github.com/pulsewire/pulse/internal/domain/audit"
	"github.com/pulsewire/pulse/internal/domain/event"
	"github.com/pulsewire/pulse/internal/domain/project"
	"github.com/pulsewire/pulse/internal/domain/rollup"
	"github.com/pulsewire/pulse/internal/domain/user"
)

type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByID(ctx context.Context, id string) (user.User, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, p project.Project) (project.Project, error)
	GetProjectByID(ctx context.Context, id string) (project.Project, error)
	GetProjectByKeyHash(ctx context.Context, keyHash string) (project.Project, error)
	RotateProjectKey(ctx context.Context, id, newKeyHash, newKeyPrefix string) error
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]project.Project, error)
}

// EventStore persists raw events and serves the hybrid query engine's raw
// sub-window reads.
type EventStore interface {
	// InsertBatch bulk-inserts rows in one transaction, deduplicating on
	// (project_id, event_uuid) so at-least-once redelivery cannot create
	// duplicate rows (spec §4.3, Open Question 1).
	InsertBatch(ctx context.Context, rows []event.Event) error

	// DistinctProjectsInWindow returns the ids of projects with at least one
	// event in [start, end) — used by the rollup engine to discover which
	// projects need their current hour recomputed.
	DistinctProjectsInWindow(ctx context.Context, start, end time.Time) ([]string, error)

	// AggregateWindow groups raw events within [start, end) by event_name,
	// with no limit or ordering requirement — the rollup engine's source of
	// truth for recompute_current_hour.
	AggregateWindow(ctx context.Context, projectID string, start, end time.Time) ([]EventAggregate, error)

	CountInWindow(ctx context.Context, projectID string, start, end time.Time) (int64, error)
	CountDistinctSessions(ctx context.Context, projectID string, start, end time.Time) (int64, error)
	CountDistinctUsers(ctx context.Context, projectID string, start, end time.Time) (int64, error)
	TopEventCounts(ctx context.Context, projectID string, start, end time.Time) (map[string]int64, error)
	TimeseriesCounts(ctx context.Context, projectID string, start, end time.Time, granularity string) (map[time.Time]int64, error)
	TopEvents(ctx context.Context, projectID string, start, end time.Time, limit int) ([]EventAggregate, error)
	Sessions(ctx context.Context, projectID string, start, end time.Time, limit, offset int) ([]SessionRow, int64, error)
	Users(ctx context.Context, projectID string, start, end time.Time, limit, offset int) ([]UserRow, int64, error)
}

// EventAggregate is one row of the top_events result.
type EventAggregate struct {
	EventName      string
	Count          int64
	UniqueSessions int64
	UniqueUsers    int64
}

// SessionRow is one row of the sessions result.
type SessionRow struct {
	SessionID   string
	Count       int64
	DistinctID  *string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// UserRow is one row of the users result.
type UserRow struct {
	DistinctID string
	Count      int64
	FirstSeen  time.Time
	LastSeen   time.Time
}

// RollupStore persists and reads the pre-aggregated hourly summaries.
type RollupStore interface {
	// UpsertHour writes one row per (project_id, event_name, hour_floor) for
	// the given hour, replacing any prior estimate for that hour. Concurrent
	// callers (two worker replicas) are safe via the table's unique
	// constraint + ON CONFLICT UPDATE (spec §5).
	UpsertHour(ctx context.Context, projectID string, hour time.Time, rows []rollup.HourlyRollup) error

	// SumInWindow returns total count, unique sessions, unique users, and
	// per-event counts for rollup rows whose hour lies in [start, end). It
	// does not exclude the current hour itself; callers pass an end no later
	// than the current hour floor.
	SumInWindow(ctx context.Context, projectID string, start, end time.Time) (count, sessions, users int64, perEvent map[string]int64, err error)

	// TimeseriesInWindow buckets rollup rows by hour (or day) within
	// [start, end).
	TimeseriesInWindow(ctx context.Context, projectID string, start, end time.Time, granularity string) (map[time.Time]int64, error)
}

type AuditStore interface {
	Append(ctx context.Context, e audit.Entry) error
}
