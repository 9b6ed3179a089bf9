package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsewire/pulse/internal/domain/rollup"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

// UpsertHour writes one row per event_name for hour, replacing whatever
// estimate was previously written for that hour. Two worker replicas racing
// on the same hour are safe: the unique constraint on
// (project_id, event_name, hour) plus ON CONFLICT UPDATE make this a
// last-writer-wins upsert (spec §5).
func (s *Store) UpsertHour(ctx context.Context, projectID string, hour time.Time, rows []rollup.HourlyRollup) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return pulseerr.Internal("begin rollup upsert", err)
	}
	defer tx.Rollback()

	const stmt = `
		INSERT INTO hourly_rollups (project_id, event_name, hour, count, unique_sessions, unique_users)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, event_name, hour)
		DO UPDATE SET count = EXCLUDED.count,
			unique_sessions = EXCLUDED.unique_sessions,
			unique_users = EXCLUDED.unique_users
	`
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, stmt, projectID, r.EventName, hour, r.Count, r.UniqueSessions, r.UniqueUsers); err != nil {
			return pulseerr.Internal("upsert rollup row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pulseerr.Internal("commit rollup upsert", err)
	}
	return nil
}

func (s *Store) SumInWindow(ctx context.Context, projectID string, start, end time.Time) (count, sessions, users int64, perEvent map[string]int64, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(count), 0), COALESCE(SUM(unique_sessions), 0), COALESCE(SUM(unique_users), 0)
		FROM hourly_rollups WHERE project_id = $1 AND hour >= $2 AND hour < $3
	`, projectID, start, end)
	if err = row.Scan(&count, &sessions, &users); err != nil {
		return 0, 0, 0, nil, pulseerr.Internal("sum rollups", err)
	}

	rows, qerr := s.db.QueryContext(ctx, `
		SELECT event_name, SUM(count) FROM hourly_rollups
		WHERE project_id = $1 AND hour >= $2 AND hour < $3
		GROUP BY event_name
	`, projectID, start, end)
	if qerr != nil {
		return 0, 0, 0, nil, pulseerr.Internal("sum rollups per event", qerr)
	}
	defer rows.Close()

	perEvent = make(map[string]int64)
	for rows.Next() {
		var name string
		var c int64
		if serr := rows.Scan(&name, &c); serr != nil {
			return 0, 0, 0, nil, pulseerr.Internal("scan rollups per event", serr)
		}
		perEvent[name] = c
	}
	return count, sessions, users, perEvent, rows.Err()
}

func (s *Store) TimeseriesInWindow(ctx context.Context, projectID string, start, end time.Time, granularity string) (map[time.Time]int64, error) {
	trunc, terr := truncUnit(granularity)
	if terr != nil {
		return nil, terr
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT date_trunc('%s', hour) AS bucket, SUM(count)
		FROM hourly_rollups WHERE project_id = $1 AND hour >= $2 AND hour < $3
		GROUP BY bucket
	`, trunc), projectID, start, end)
	if err != nil {
		return nil, pulseerr.Internal("rollup timeseries", err)
	}
	defer rows.Close()

	out := make(map[time.Time]int64)
	for rows.Next() {
		var bucket time.Time
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, pulseerr.Internal("scan rollup timeseries", err)
		}
		out[bucket.UTC()] = count
	}
	return out, rows.Err()
}
