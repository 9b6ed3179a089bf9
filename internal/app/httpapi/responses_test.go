package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulse/internal/pulseerr"
)

func TestWriteJSONSetsContentTypeAndEncodesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "abc", body["id"])
}

func TestWriteErrorMapsDomainErrorToItsStatusAndMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, pulseerr.NotFound("project", "p1"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["error"])
}

func TestWriteErrorRedactsUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("some leaky internal detail"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotContains(t, body["error"], "leaky internal detail")
}
