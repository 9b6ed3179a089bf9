// Package rollup holds the pre-aggregated hourly event summary model.
package rollup

import "time"

// HourlyRollup is unique per (project_id, event_name, hour). The rollup set
// is complete for hours strictly before the current UTC hour; the current
// hour's row is an in-progress estimate never read by queries.
type HourlyRollup struct {
	ID             int64     `db:"id"`
	ProjectID      string    `db:"project_id"`
	EventName      string    `db:"event_name"`
	Hour           time.Time `db:"hour"`
	Count          int64     `db:"count"`
	UniqueSessions int64     `db:"unique_sessions"`
	UniqueUsers    int64     `db:"unique_users"`
}

// HourFloor truncates t to the UTC hour boundary (the GLOSSARY's "Hour
// floor").
func HourFloor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
}
