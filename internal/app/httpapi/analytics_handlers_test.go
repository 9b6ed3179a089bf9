package httpapi

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requestWithQuery(t *testing.T, raw string) *http.Request {
	t.Helper()
	u, err := url.Parse("/analytics/proj1/overview?" + raw)
	require.NoError(t, err)
	return &http.Request{URL: u}
}

func TestParseWindowDefaultsTo24Hours(t *testing.T) {
	r := requestWithQuery(t, "")
	start, end, err := parseWindow(r)
	require.NoError(t, err)
	require.WithinDuration(t, end.Add(-24*time.Hour), start, time.Second)
}

func TestParseWindowAccepts7dAnd30dPeriods(t *testing.T) {
	r7 := requestWithQuery(t, "period=7d")
	start, end, err := parseWindow(r7)
	require.NoError(t, err)
	require.WithinDuration(t, end.Add(-7*24*time.Hour), start, time.Second)

	r30 := requestWithQuery(t, "period=30d")
	start, end, err = parseWindow(r30)
	require.NoError(t, err)
	require.WithinDuration(t, end.Add(-30*24*time.Hour), start, time.Second)
}

func TestParseWindowRejectsUnknownPeriod(t *testing.T) {
	r := requestWithQuery(t, "period=1y")
	_, _, err := parseWindow(r)
	require.Error(t, err)
}

func TestParseWindowAcceptsExplicitISO8601Range(t *testing.T) {
	r := requestWithQuery(t, "start=2026-01-01T00:00:00Z&end=2026-01-02T00:00:00Z")
	start, end, err := parseWindow(r)
	require.NoError(t, err)
	require.Equal(t, "2026-01-01T00:00:00Z", start.Format(time.RFC3339))
	require.Equal(t, "2026-01-02T00:00:00Z", end.Format(time.RFC3339))
}

func TestParseWindowRejectsMalformedExplicitTimestamps(t *testing.T) {
	r := requestWithQuery(t, "start=not-a-date&end=2026-01-02T00:00:00Z")
	_, _, err := parseWindow(r)
	require.Error(t, err)
}

func TestIntParamFallsBackToDefaultOnMissingOrInvalid(t *testing.T) {
	r := requestWithQuery(t, "limit=notanumber")
	require.Equal(t, 25, intParam(r, "limit", 25))

	r2 := requestWithQuery(t, "limit=50")
	require.Equal(t, 50, intParam(r2, "limit", 25))

	r3 := requestWithQuery(t, "")
	require.Equal(t, 25, intParam(r3, "limit", 25))
}
