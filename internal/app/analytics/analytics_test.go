package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulse/internal/app/storage"
	"github.com/pulsewire/pulse/internal/domain/event"
	"github.com/pulsewire/pulse/internal/domain/rollup"
)

type fakeStore struct {
	rollupCount, rollupSessions, rollupUsers int64
	rollupPerEvent                           map[string]int64
	rollupBuckets                            map[time.Time]int64

	rawCount, rawSessions, rawUsers int64
	rawPerEvent                     map[string]int64
	rawBuckets                      map[time.Time]int64
	rawAggregates                   []storage.EventAggregate

	sessions []storage.SessionRow
	users    []storage.UserRow
}

func (f *fakeStore) InsertBatch(ctx context.Context, rows []event.Event) error { return nil }

func (f *fakeStore) DistinctProjectsInWindow(ctx context.Context, start, end time.Time) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) AggregateWindow(ctx context.Context, projectID string, start, end time.Time) ([]storage.EventAggregate, error) {
	return f.rawAggregates, nil
}

func (f *fakeStore) CountInWindow(ctx context.Context, projectID string, start, end time.Time) (int64, error) {
	return f.rawCount, nil
}

func (f *fakeStore) CountDistinctSessions(ctx context.Context, projectID string, start, end time.Time) (int64, error) {
	return f.rawSessions, nil
}

func (f *fakeStore) CountDistinctUsers(ctx context.Context, projectID string, start, end time.Time) (int64, error) {
	return f.rawUsers, nil
}

func (f *fakeStore) TopEventCounts(ctx context.Context, projectID string, start, end time.Time) (map[string]int64, error) {
	return f.rawPerEvent, nil
}

func (f *fakeStore) TimeseriesCounts(ctx context.Context, projectID string, start, end time.Time, granularity string) (map[time.Time]int64, error) {
	return f.rawBuckets, nil
}

func (f *fakeStore) TopEvents(ctx context.Context, projectID string, start, end time.Time, limit int) ([]storage.EventAggregate, error) {
	return f.rawAggregates, nil
}

func (f *fakeStore) Sessions(ctx context.Context, projectID string, start, end time.Time, limit, offset int) ([]storage.SessionRow, int64, error) {
	return f.sessions, int64(len(f.sessions)), nil
}

func (f *fakeStore) Users(ctx context.Context, projectID string, start, end time.Time, limit, offset int) ([]storage.UserRow, int64, error) {
	return f.users, int64(len(f.users)), nil
}

func (f *fakeStore) UpsertHour(ctx context.Context, projectID string, hour time.Time, rows []rollup.HourlyRollup) error {
	return nil
}

func (f *fakeStore) SumInWindow(ctx context.Context, projectID string, start, end time.Time) (int64, int64, int64, map[string]int64, error) {
	return f.rollupCount, f.rollupSessions, f.rollupUsers, f.rollupPerEvent, nil
}

func (f *fakeStore) TimeseriesInWindow(ctx context.Context, projectID string, start, end time.Time, granularity string) (map[time.Time]int64, error) {
	return f.rollupBuckets, nil
}

func newTestEngine(events *fakeStore, rollups *fakeStore) *Engine {
	return New(events, rollups)
}

func TestOverviewMergesRollupAndRawSubwindows(t *testing.T) {
	events := &fakeStore{
		rawCount: 10, rawSessions: 4, rawUsers: 3,
		rawPerEvent: map[string]int64{"click": 7, "view": 3},
	}
	rollups := &fakeStore{
		rollupCount: 100, rollupSessions: 20, rollupUsers: 15,
		rollupPerEvent: map[string]int64{"click": 60, "view": 40},
	}
	engine := newTestEngine(events, rollups)

	now := time.Now().UTC()
	start := now.Add(-3 * time.Hour)
	end := now.Add(3 * time.Hour)

	out, err := engine.Overview(context.Background(), "proj1", start, end)
	require.NoError(t, err)
	require.Equal(t, int64(110), out.TotalEvents)
	require.Equal(t, int64(24), out.UniqueSessions)
	require.Equal(t, int64(18), out.UniqueUsers)
	require.NotNil(t, out.TopEvent)
	require.Equal(t, "click", *out.TopEvent)
}

func TestOverviewRejectsInvertedWindow(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeStore{})
	now := time.Now().UTC()
	_, err := engine.Overview(context.Background(), "proj1", now, now.Add(-time.Hour))
	require.Error(t, err)
}

func TestOverviewEntirelyInPastUsesOnlyRollupSubwindow(t *testing.T) {
	events := &fakeStore{rawCount: 999}
	rollups := &fakeStore{rollupCount: 5}
	engine := newTestEngine(events, rollups)

	now := time.Now().UTC()
	h := now.Truncate(time.Hour)
	start := h.Add(-2 * time.Hour)
	end := h.Add(-time.Hour)

	out, err := engine.Overview(context.Background(), "proj1", start, end)
	require.NoError(t, err)
	require.Equal(t, int64(5), out.TotalEvents)
}

func TestTopEventsSortsDescendingAndRespectsLimit(t *testing.T) {
	events := &fakeStore{
		rawAggregates: []storage.EventAggregate{
			{EventName: "a", Count: 1},
			{EventName: "b", Count: 50},
			{EventName: "c", Count: 10},
		},
	}
	rollups := &fakeStore{}
	engine := newTestEngine(events, rollups)

	now := time.Now().UTC()
	out, err := engine.TopEvents(context.Background(), "proj1", now.Add(-time.Minute), now.Add(time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "b", out[0].EventName)
	require.Equal(t, "c", out[1].EventName)
}

func TestSessionsClampsNegativeOffset(t *testing.T) {
	events := &fakeStore{sessions: []storage.SessionRow{{SessionID: "s1"}}}
	engine := newTestEngine(events, &fakeStore{})

	now := time.Now().UTC()
	rows, total, err := engine.Sessions(context.Background(), "proj1", now.Add(-time.Hour), now, 10, -5)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
}
