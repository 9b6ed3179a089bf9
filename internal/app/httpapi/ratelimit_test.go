package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIPLimiterAllowsBurstUpToPerMinuteThenRejects(t *testing.T) {
	l := newIPLimiter(5)
	for i := 0; i < 5; i++ {
		require.True(t, l.allow("1.2.3.4"), "request %d should be within burst", i)
	}
	require.False(t, l.allow("1.2.3.4"))
}

func TestIPLimiterTracksDistinctIPsIndependently(t *testing.T) {
	l := newIPLimiter(1)
	require.True(t, l.allow("1.2.3.4"))
	require.True(t, l.allow("5.6.7.8"), "a different IP must have its own bucket")
}

func TestIPLimiterPruneLockedEvictsStaleEntries(t *testing.T) {
	l := newIPLimiter(5)
	l.allow("1.2.3.4")
	l.lastAccessed["1.2.3.4"] = time.Now().Add(-staleLimiterAfter - time.Second)
	l.lastPrune = time.Now().Add(-pruneInterval - time.Second)

	l.pruneLocked(time.Now())

	require.NotContains(t, l.limiters, "1.2.3.4")
	require.NotContains(t, l.lastAccessed, "1.2.3.4")
}

func TestClientIPPrefersForwardedForHeader(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")

	require.Equal(t, "203.0.113.9", clientIP(r))
}

func TestClientIPFallsBackToRemoteAddrHost(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	r.RemoteAddr = "10.0.0.1:5555"

	require.Equal(t, "10.0.0.1", clientIP(r))
}
