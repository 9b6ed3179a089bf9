package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulsewire/pulse/internal/app/analytics"
	"github.com/pulsewire/pulse/internal/app/metrics"
	"github.com/pulsewire/pulse/internal/app/projects"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

type analyticsHandlers struct {
	analytics *analytics.Engine
	projects  *projects.Service
	metrics   *metrics.Metrics
}

// parseWindow resolves [start, end] from either ?period=24h|7d|30d (default
// 24h) or explicit ?start=&end= ISO-8601 timestamps (spec §6).
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if startStr, endStr := q.Get("start"), q.Get("end"); startStr != "" || endStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, pulseerr.ValidationError("start", "must be ISO-8601")
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, pulseerr.ValidationError("end", "must be ISO-8601")
		}
		return start.UTC(), end.UTC(), nil
	}

	period := q.Get("period")
	var d time.Duration
	switch period {
	case "", "24h":
		d = 24 * time.Hour
	case "7d":
		d = 7 * 24 * time.Hour
	case "30d":
		d = 30 * 24 * time.Hour
	default:
		return time.Time{}, time.Time{}, pulseerr.ValidationError("period", "must be 24h, 7d, or 30d")
	}
	end := time.Now().UTC()
	return end.Add(-d), end, nil
}

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// authorizeProject verifies the caller owns project_id, returning NotFound
// (not Forbidden) on mismatch to avoid existence probing (spec §7).
func (h *analyticsHandlers) authorizeProject(r *http.Request) (string, error) {
	userID, _ := userIDFrom(r.Context())
	projectID := chi.URLParam(r, "project_id")
	if _, err := h.projects.Get(r.Context(), userID, projectID); err != nil {
		return "", err
	}
	return projectID, nil
}

func (h *analyticsHandlers) overview(w http.ResponseWriter, r *http.Request) {
	h.observe("overview")
	projectID, err := h.authorizeProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	start, end, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.analytics.Overview(r.Context(), projectID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_events":    out.TotalEvents,
		"unique_sessions": out.UniqueSessions,
		"unique_users":    out.UniqueUsers,
		"top_event":       out.TopEvent,
		"period_start":    out.PeriodStart,
		"period_end":      out.PeriodEnd,
	})
}

func (h *analyticsHandlers) timeseries(w http.ResponseWriter, r *http.Request) {
	h.observe("timeseries")
	projectID, err := h.authorizeProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	start, end, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	granularity := r.URL.Query().Get("granularity")
	if granularity == "" {
		granularity = "hourly"
	}
	buckets, err := h.analytics.Timeseries(r.Context(), projectID, start, end, granularity)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, len(buckets))
	for i, b := range buckets {
		out[i] = map[string]interface{}{"bucket": b.Time, "count": b.Count}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"buckets": out})
}

func (h *analyticsHandlers) topEvents(w http.ResponseWriter, r *http.Request) {
	h.observe("top_events")
	projectID, err := h.authorizeProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	start, end, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := intParam(r, "limit", 25)
	rows, err := h.analytics.TopEvents(r.Context(), projectID, start, end, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = map[string]interface{}{
			"event": row.EventName, "count": row.Count,
			"unique_sessions": row.UniqueSessions, "unique_users": row.UniqueUsers,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

func (h *analyticsHandlers) sessions(w http.ResponseWriter, r *http.Request) {
	h.observe("sessions")
	projectID, err := h.authorizeProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	start, end, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := intParam(r, "limit", 25)
	offset := intParam(r, "offset", 0)
	rows, total, err := h.analytics.Sessions(r.Context(), projectID, start, end, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = map[string]interface{}{
			"session_id": row.SessionID, "count": row.Count, "distinct_id": row.DistinctID,
			"first_seen": row.FirstSeen, "last_seen": row.LastSeen,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": out, "total": total})
}

func (h *analyticsHandlers) users(w http.ResponseWriter, r *http.Request) {
	h.observe("users")
	projectID, err := h.authorizeProject(r)
	if err != nil {
		writeError(w, err)
		return
	}
	start, end, err := parseWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := intParam(r, "limit", 25)
	offset := intParam(r, "offset", 0)
	rows, total, err := h.analytics.Users(r.Context(), projectID, start, end, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = map[string]interface{}{
			"distinct_id": row.DistinctID, "count": row.Count,
			"first_seen": row.FirstSeen, "last_seen": row.LastSeen,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": out, "total": total})
}

func (h *analyticsHandlers) observe(operation string) {
	if h.metrics != nil {
		h.metrics.AnalyticsRequests.WithLabelValues(operation).Inc()
	}
}
