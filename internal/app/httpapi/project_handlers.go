package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pulsewire/pulse/internal/app/projects"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

type projectHandlers struct {
	projects *projects.Service
}

type createProjectRequest struct {
	Name   string  `json:"name"`
	Domain *string `json:"domain,omitempty"`
}

func (h *projectHandlers) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pulseerr.ValidationError("body", "invalid JSON"))
		return
	}
	if req.Name == "" {
		writeError(w, pulseerr.ValidationError("name", "required"))
		return
	}

	p, plaintextKey, err := h.projects.Create(r.Context(), userID, req.Name, req.Domain)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id": p.ID, "name": p.Name, "domain": p.Domain, "key": plaintextKey, "key_prefix": p.KeyPrefix,
	})
}

func (h *projectHandlers) rotateKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())
	projectID := chi.URLParam(r, "project_id")

	plaintextKey, err := h.projects.RotateKey(r.Context(), userID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": plaintextKey})
}

func (h *projectHandlers) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	rows, err := h.projects.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, len(rows))
	for i, p := range rows {
		out[i] = map[string]interface{}{
			"id": p.ID, "name": p.Name, "domain": p.Domain, "key_prefix": p.KeyPrefix, "created_at": p.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": out})
}
