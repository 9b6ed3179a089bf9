// Package rollup implements the rollup engine (spec §4.4): it recomputes the
// current, still-open hour's pre-aggregated summary from raw events, and
// seals the just-closed hour with one final pass the moment a boundary
// crossing is observed. Past hours are never revisited beyond that seal.
package rollup

import (
	"context"
	"sync"
	"time"

	"github.com/pulsewire/pulse/internal/app/storage"
	rollupdomain "github.com/pulsewire/pulse/internal/domain/rollup"
	"github.com/pulsewire/pulse/internal/pulseerr"
	"github.com/pulsewire/pulse/pkg/logger"
)

// Engine recomputes the current hour's rollup rows on demand.
type Engine struct {
	events  storage.EventStore
	rollups storage.RollupStore
	log     *logger.Logger

	mu       sync.Mutex
	lastHour time.Time
}

func New(events storage.EventStore, rollups storage.RollupStore, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("rollup")
	}
	return &Engine{events: events, rollups: rollups, log: log}
}

// RecomputeCurrentHour recomputes the still-open hour. If this call observes
// the clock has crossed an hour boundary since the previous call, it first
// seals the just-closed hour with one final RecomputeHour pass: otherwise
// events persisted between the last in-hour pass and the boundary would
// never be folded into that hour's rollup, since queries read sealed hours
// from rollups only (spec §4.4, §8 "sum(rollup.count) == raw count").
func (e *Engine) RecomputeCurrentHour(ctx context.Context) error {
	hour := rollupdomain.HourFloor(time.Now().UTC())

	e.mu.Lock()
	prev := e.lastHour
	e.lastHour = hour
	e.mu.Unlock()

	if !prev.IsZero() && prev.Before(hour) {
		if err := e.RecomputeHour(ctx, prev); err != nil {
			e.log.Errorf("seal closed rollup hour %s: %v", prev, err)
		}
	}

	return e.RecomputeHour(ctx, hour)
}

// RecomputeHour scans every project with at least one raw event in [hour,
// hour+1h) and upserts its (event_name, hour) rows. A project with no events
// in the window is left untouched rather than written with zeros, since
// DistinctProjectsInWindow never surfaces it.
func (e *Engine) RecomputeHour(ctx context.Context, hour time.Time) error {
	end := hour.Add(time.Hour)

	projectIDs, err := e.events.DistinctProjectsInWindow(ctx, hour, end)
	if err != nil {
		return pulseerr.Internal("list projects for rollup", err)
	}

	for _, projectID := range projectIDs {
		if err := e.recomputeProjectHour(ctx, projectID, hour, end); err != nil {
			e.log.Errorf("recompute rollup for project %s hour %s: %v", projectID, hour, err)
		}
	}
	return nil
}

func (e *Engine) recomputeProjectHour(ctx context.Context, projectID string, hour, end time.Time) error {
	aggs, err := e.events.AggregateWindow(ctx, projectID, hour, end)
	if err != nil {
		return err
	}
	if len(aggs) == 0 {
		return nil
	}

	rows := make([]rollupdomain.HourlyRollup, len(aggs))
	for i, a := range aggs {
		rows[i] = rollupdomain.HourlyRollup{
			ProjectID:      projectID,
			EventName:      a.EventName,
			Hour:           hour,
			Count:          a.Count,
			UniqueSessions: a.UniqueSessions,
			UniqueUsers:    a.UniqueUsers,
		}
	}
	return e.rollups.UpsertHour(ctx, projectID, hour, rows)
}
