package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/event"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

// InsertBatch bulk-inserts rows in a single transaction. Conflicts on
// (project_id, event_uuid) are silently dropped: this is the raw-store side
// of Open Question 1's conflict key, making at-least-once buffer redelivery
// safe against duplicate rows.
func (s *Store) InsertBatch(ctx context.Context, rows []event.Event) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return pulseerr.Internal("begin batch insert", err)
	}
	defer tx.Rollback()

	const stmt = `
		INSERT INTO events (project_id, event_uuid, event_name, distinct_id, properties,
			session_id, page_url, referrer, user_agent, ip_hash, "timestamp", created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (project_id, event_uuid) DO NOTHING
	`
	now := time.Now().UTC()
	for _, r := range rows {
		var props interface{}
		if len(r.Properties) > 0 {
			props = []byte(r.Properties)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			r.ProjectID, r.EventUUID, r.EventName, r.DistinctID, props,
			r.SessionID, r.PageURL, r.Referrer, r.UserAgent, r.IPHash, r.Timestamp, now,
		); err != nil {
			return pulseerr.Internal("insert event row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pulseerr.Internal("commit batch insert", err)
	}
	return nil
}

// DistinctProjectsInWindow lists project ids with at least one raw event in
// [start, end). The drain worker's rollup pass uses this to find which
// tenants need their current hour recomputed instead of sweeping every
// project on the table.
func (s *Store) DistinctProjectsInWindow(ctx context.Context, start, end time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT project_id FROM events WHERE "timestamp" >= $1 AND "timestamp" < $2
	`, start, end)
	if err != nil {
		return nil, pulseerr.Internal("distinct projects in window", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pulseerr.Internal("scan distinct project", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AggregateWindow groups raw events in [start, end) by event_name with no
// ordering or row limit. Null session_id/distinct_id values never count
// toward unique_sessions/unique_users but every row still counts toward
// count.
func (s *Store) AggregateWindow(ctx context.Context, projectID string, start, end time.Time) ([]storage.EventAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_name, COUNT(*) AS cnt,
			COUNT(DISTINCT session_id) AS sessions,
			COUNT(DISTINCT distinct_id) AS users
		FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3
		GROUP BY event_name
	`, projectID, start, end)
	if err != nil {
		return nil, pulseerr.Internal("aggregate window", err)
	}
	defer rows.Close()

	var out []storage.EventAggregate
	for rows.Next() {
		var a storage.EventAggregate
		if err := rows.Scan(&a.EventName, &a.Count, &a.UniqueSessions, &a.UniqueUsers); err != nil {
			return nil, pulseerr.Internal("scan aggregate window", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountInWindow(ctx context.Context, projectID string, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM events WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3
	`, projectID, start, end)
	if err != nil {
		return 0, pulseerr.Internal("count events in window", err)
	}
	return count, nil
}

func (s *Store) CountDistinctSessions(ctx context.Context, projectID string, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(DISTINCT session_id) FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3 AND session_id IS NOT NULL
	`, projectID, start, end)
	if err != nil {
		return 0, pulseerr.Internal("count distinct sessions", err)
	}
	return count, nil
}

func (s *Store) CountDistinctUsers(ctx context.Context, projectID string, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(DISTINCT distinct_id) FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3 AND distinct_id IS NOT NULL
	`, projectID, start, end)
	if err != nil {
		return 0, pulseerr.Internal("count distinct users", err)
	}
	return count, nil
}

func (s *Store) TopEventCounts(ctx context.Context, projectID string, start, end time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_name, COUNT(*) FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3
		GROUP BY event_name
	`, projectID, start, end)
	if err != nil {
		return nil, pulseerr.Internal("top event counts", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, pulseerr.Internal("scan top event counts", err)
		}
		out[name] = count
	}
	return out, rows.Err()
}

func (s *Store) TimeseriesCounts(ctx context.Context, projectID string, start, end time.Time, granularity string) (map[time.Time]int64, error) {
	trunc, err := truncUnit(granularity)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT date_trunc('%s', "timestamp") AS bucket, COUNT(*)
		FROM events WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3
		GROUP BY bucket
	`, trunc), projectID, start, end)
	if err != nil {
		return nil, pulseerr.Internal("timeseries counts", err)
	}
	defer rows.Close()

	out := make(map[time.Time]int64)
	for rows.Next() {
		var bucket time.Time
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, pulseerr.Internal("scan timeseries counts", err)
		}
		out[bucket.UTC()] = count
	}
	return out, rows.Err()
}

func (s *Store) TopEvents(ctx context.Context, projectID string, start, end time.Time, limit int) ([]storage.EventAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_name, COUNT(*) AS cnt,
			COUNT(DISTINCT session_id) AS sessions,
			COUNT(DISTINCT distinct_id) AS users
		FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3
		GROUP BY event_name
		ORDER BY cnt DESC
		LIMIT $4
	`, projectID, start, end, limit)
	if err != nil {
		return nil, pulseerr.Internal("top events", err)
	}
	defer rows.Close()

	var out []storage.EventAggregate
	for rows.Next() {
		var a storage.EventAggregate
		if err := rows.Scan(&a.EventName, &a.Count, &a.UniqueSessions, &a.UniqueUsers); err != nil {
			return nil, pulseerr.Internal("scan top events", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Sessions(ctx context.Context, projectID string, start, end time.Time, limit, offset int) ([]storage.SessionRow, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, `
		SELECT COUNT(DISTINCT session_id) FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3 AND session_id IS NOT NULL
	`, projectID, start, end); err != nil {
		return nil, 0, pulseerr.Internal("count sessions", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*) AS cnt, MAX(distinct_id) AS distinct_id,
			MIN("timestamp") AS first_seen, MAX("timestamp") AS last_seen
		FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3 AND session_id IS NOT NULL
		GROUP BY session_id
		ORDER BY last_seen DESC
		LIMIT $4 OFFSET $5
	`, projectID, start, end, limit, offset)
	if err != nil {
		return nil, 0, pulseerr.Internal("list sessions", err)
	}
	defer rows.Close()

	var out []storage.SessionRow
	for rows.Next() {
		var r storage.SessionRow
		if err := rows.Scan(&r.SessionID, &r.Count, &r.DistinctID, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, 0, pulseerr.Internal("scan sessions", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *Store) Users(ctx context.Context, projectID string, start, end time.Time, limit, offset int) ([]storage.UserRow, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, `
		SELECT COUNT(DISTINCT distinct_id) FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3 AND distinct_id IS NOT NULL
	`, projectID, start, end); err != nil {
		return nil, 0, pulseerr.Internal("count users", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT distinct_id, COUNT(*) AS cnt, MIN("timestamp") AS first_seen, MAX("timestamp") AS last_seen
		FROM events
		WHERE project_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3 AND distinct_id IS NOT NULL
		GROUP BY distinct_id
		ORDER BY cnt DESC
		LIMIT $4 OFFSET $5
	`, projectID, start, end, limit, offset)
	if err != nil {
		return nil, 0, pulseerr.Internal("list users", err)
	}
	defer rows.Close()

	var out []storage.UserRow
	for rows.Next() {
		var r storage.UserRow
		if err := rows.Scan(&r.DistinctID, &r.Count, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, 0, pulseerr.Internal("scan users", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func truncUnit(granularity string) (string, error) {
	switch granularity {
	case "hourly", "":
		return "hour", nil
	case "daily":
		return "day", nil
	default:
		return "", pulseerr.ValidationError("granularity", "must be hourly or daily")
	}
}
