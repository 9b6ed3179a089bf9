// Package analytics implements the hybrid query engine (spec §4.5): overview,
// timeseries, top-events, sessions, and users, each scoped to a project and a
// half-open time window. overview/timeseries/top-events split the window at
// the current hour floor and merge a rollup-backed sub-window with a
// raw-backed sub-window; sessions/users always read raw data directly.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/pulsewire/pulse/internal/app/core/service"
	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/rollup"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

const (
	DefaultSessionsLimit = 25
	MaxSessionsLimit     = 200
	DefaultUsersLimit    = 25
	MaxUsersLimit        = 200
	MaxTopEventsLimit    = 50
)

// Engine answers analytics queries over the rollup and raw event stores.
type Engine struct {
	events  storage.EventStore
	rollups storage.RollupStore
}

func New(events storage.EventStore, rollups storage.RollupStore) *Engine {
	return &Engine{events: events, rollups: rollups}
}

// Overview is the response shape for the overview operation.
type Overview struct {
	TotalEvents    int64
	UniqueSessions int64
	UniqueUsers    int64
	TopEvent       *string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

// Bucket is one (time, count) pair of a timeseries response.
type Bucket struct {
	Time  time.Time
	Count int64
}

// TopEvent is one row of the top-events response.
type TopEvent struct {
	EventName      string
	Count          int64
	UniqueSessions int64
	UniqueUsers    int64
}

// window splits [start, end) at the current hour floor into a rollup
// sub-window [start, min(end, h)) and a raw sub-window [max(start, h), end).
// Either side may be empty.
type window struct {
	rollupStart, rollupEnd time.Time
	rawStart, rawEnd       time.Time
}

func splitWindow(start, end time.Time) window {
	h := rollup.HourFloor(time.Now())

	rollupEnd := end
	if h.Before(rollupEnd) {
		rollupEnd = h
	}
	rawStart := start
	if h.After(rawStart) {
		rawStart = h
	}

	w := window{rollupStart: start, rollupEnd: rollupEnd, rawStart: rawStart, rawEnd: end}
	if w.rollupEnd.Before(w.rollupStart) {
		w.rollupEnd = w.rollupStart
	}
	if w.rawEnd.Before(w.rawStart) {
		w.rawEnd = w.rawStart
	}
	return w
}

func validateWindow(start, end time.Time) error {
	if end.Before(start) {
		return pulseerr.ValidationError("end", "must not be before start")
	}
	return nil
}

// Overview implements spec §4.5's overview operation.
func (e *Engine) Overview(ctx context.Context, projectID string, start, end time.Time) (Overview, error) {
	if err := validateWindow(start, end); err != nil {
		return Overview{}, err
	}
	w := splitWindow(start, end)

	var total, sessions, users int64
	perEvent := make(map[string]int64)

	if w.rollupEnd.After(w.rollupStart) {
		c, s, u, pe, err := e.rollups.SumInWindow(ctx, projectID, w.rollupStart, w.rollupEnd)
		if err != nil {
			return Overview{}, err
		}
		total += c
		sessions += s
		users += u
		for k, v := range pe {
			perEvent[k] += v
		}
	}

	if w.rawEnd.After(w.rawStart) {
		c, err := e.events.CountInWindow(ctx, projectID, w.rawStart, w.rawEnd)
		if err != nil {
			return Overview{}, err
		}
		s, err := e.events.CountDistinctSessions(ctx, projectID, w.rawStart, w.rawEnd)
		if err != nil {
			return Overview{}, err
		}
		u, err := e.events.CountDistinctUsers(ctx, projectID, w.rawStart, w.rawEnd)
		if err != nil {
			return Overview{}, err
		}
		pe, err := e.events.TopEventCounts(ctx, projectID, w.rawStart, w.rawEnd)
		if err != nil {
			return Overview{}, err
		}
		total += c
		sessions += s
		users += u
		for k, v := range pe {
			perEvent[k] += v
		}
	}

	var top *string
	var topCount int64 = -1
	for name, count := range perEvent {
		if count > topCount {
			n := name
			top = &n
			topCount = count
		}
	}

	return Overview{
		TotalEvents:    total,
		UniqueSessions: sessions,
		UniqueUsers:    users,
		TopEvent:       top,
		PeriodStart:    start,
		PeriodEnd:      end,
	}, nil
}

// Timeseries implements spec §4.5's timeseries operation.
func (e *Engine) Timeseries(ctx context.Context, projectID string, start, end time.Time, granularity string) ([]Bucket, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	w := splitWindow(start, end)
	merged := make(map[time.Time]int64)

	if w.rollupEnd.After(w.rollupStart) {
		buckets, err := e.rollups.TimeseriesInWindow(ctx, projectID, w.rollupStart, w.rollupEnd, granularity)
		if err != nil {
			return nil, err
		}
		for k, v := range buckets {
			merged[truncate(k, granularity)] += v
		}
	}
	if w.rawEnd.After(w.rawStart) {
		buckets, err := e.events.TimeseriesCounts(ctx, projectID, w.rawStart, w.rawEnd, granularity)
		if err != nil {
			return nil, err
		}
		for k, v := range buckets {
			merged[truncate(k, granularity)] += v
		}
	}

	out := make([]Bucket, 0, len(merged))
	for k, v := range merged {
		out = append(out, Bucket{Time: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func truncate(t time.Time, granularity string) time.Time {
	u := t.UTC()
	if granularity == "daily" {
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
}

// TopEvents implements spec §4.5's top_events operation, summing per-event
// counts from both sub-windows and re-sorting descending by count.
func (e *Engine) TopEvents(ctx context.Context, projectID string, start, end time.Time, limit int) ([]TopEvent, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	limit = service.ClampLimit(limit, 25, MaxTopEventsLimit)
	w := splitWindow(start, end)

	merged := make(map[string]*TopEvent)
	addRow := func(name string, count, sessions, users int64) {
		row, ok := merged[name]
		if !ok {
			row = &TopEvent{EventName: name}
			merged[name] = row
		}
		row.Count += count
		row.UniqueSessions += sessions
		row.UniqueUsers += users
	}

	if w.rollupEnd.After(w.rollupStart) {
		_, _, _, perEvent, err := e.rollups.SumInWindow(ctx, projectID, w.rollupStart, w.rollupEnd)
		if err != nil {
			return nil, err
		}
		for name, count := range perEvent {
			addRow(name, count, 0, 0)
		}
	}
	if w.rawEnd.After(w.rawStart) {
		aggs, err := e.events.AggregateWindow(ctx, projectID, w.rawStart, w.rawEnd)
		if err != nil {
			return nil, err
		}
		for _, a := range aggs {
			addRow(a.EventName, a.Count, a.UniqueSessions, a.UniqueUsers)
		}
	}

	out := make([]TopEvent, 0, len(merged))
	for _, row := range merged {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Sessions implements spec §4.5's sessions operation: always raw, never
// rollup-backed.
func (e *Engine) Sessions(ctx context.Context, projectID string, start, end time.Time, limit, offset int) ([]storage.SessionRow, int64, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, 0, err
	}
	limit = service.ClampLimit(limit, DefaultSessionsLimit, MaxSessionsLimit)
	if offset < 0 {
		offset = 0
	}
	return e.events.Sessions(ctx, projectID, start, end, limit, offset)
}

// Users implements spec §4.5's users operation: always raw, never
// rollup-backed.
func (e *Engine) Users(ctx context.Context, projectID string, start, end time.Time, limit, offset int) ([]storage.UserRow, int64, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, 0, err
	}
	limit = service.ClampLimit(limit, DefaultUsersLimit, MaxUsersLimit)
	if offset < 0 {
		offset = 0
	}
	return e.events.Users(ctx, projectID, start, end, limit, offset)
}
