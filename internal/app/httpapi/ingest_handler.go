package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pulsewire/pulse/internal/app/ingest"
	"github.com/pulsewire/pulse/internal/app/metrics"
	"github.com/pulsewire/pulse/internal/domain/event"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

type ingestHandlers struct {
	coordinator *ingest.Coordinator
	metrics     *metrics.Metrics
}

type ingestRequest struct {
	Events []event.IngestItem `json:"events"`
}

// ingestEvents implements POST /events/ingest (spec §6).
func (h *ingestHandlers) ingestEvents(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	defer func() {
		if h.metrics != nil {
			h.metrics.IngestDuration.Observe(time.Since(started).Seconds())
		}
	}()

	projectKey := r.Header.Get("X-API-Key")
	if projectKey == "" {
		h.observe("unauthorized")
		writeError(w, pulseerr.Unauthorized(""))
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.observe("validation_error")
		writeError(w, pulseerr.ValidationError("body", "invalid JSON"))
		return
	}

	accepted, err := h.coordinator.Ingest(r.Context(), projectKey, req.Events, clientIP(r), r.UserAgent())
	if err != nil {
		h.observe(string(pulseerr.KindOf(err)))
		writeError(w, err)
		return
	}

	h.observe("accepted")
	if h.metrics != nil {
		h.metrics.IngestEventsTotal.Add(float64(accepted))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": accepted})
}

func (h *ingestHandlers) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.IngestRequests.WithLabelValues(outcome).Inc()
	}
}
