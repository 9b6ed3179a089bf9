// Package httpapi wires the chi router, middleware chain, and REST/websocket
// handlers for the analytics backend (spec §6, §9 "explicit middleware
// chain").
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/pulsewire/pulse/internal/pulseerr"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a domain error onto the HTTP boundary per spec §7. Errors
// that are not a *pulseerr.Error are treated as internal and redacted.
func writeError(w http.ResponseWriter, err error) {
	status := pulseerr.HTTPStatus(err)
	message := http.StatusText(status)
	if e, ok := pulseerr.As(err); ok {
		message = e.Message
	}
	writeJSON(w, status, map[string]interface{}{"error": message})
}
