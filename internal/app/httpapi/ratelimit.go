package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pulsewire/pulse/internal/pulseerr"
)

// staleLimiterAfter and pruneInterval bound the per-IP limiter map's growth:
// an IP that stops sending requests is evicted rather than held forever.
const (
	staleLimiterAfter = 10 * time.Minute
	pruneInterval     = time.Minute
)

// ipLimiter is a per-IP limiter (spec §6 "Rate limits"), implemented as one
// token bucket per client IP per route class: a burst of perMinute requests,
// refilled at perMinute/60 tokens per second. It is not a sliding window.
type ipLimiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	perMinute    int
	lastAccessed map[string]time.Time
	lastPrune    time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	return &ipLimiter{
		limiters:     make(map[string]*rate.Limiter),
		lastAccessed: make(map[string]time.Time),
		perMinute:    perMinute,
		lastPrune:    time.Now(),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)
		l.limiters[ip] = lim
	}
	l.lastAccessed[ip] = now
	l.pruneLocked(now)
	return lim.Allow()
}

// pruneLocked evicts IPs idle past staleLimiterAfter. Called with mu held, at
// most once per pruneInterval so the sweep cost stays amortized.
func (l *ipLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < pruneInterval {
		return
	}
	l.lastPrune = now
	for ip, last := range l.lastAccessed {
		if now.Sub(last) > staleLimiterAfter {
			delete(l.lastAccessed, ip)
			delete(l.limiters, ip)
		}
	}
}

// rateLimitMiddleware rejects requests exceeding perMinute per client IP with
// a 429 (spec §7 RateLimited).
func rateLimitMiddleware(perMinute int) func(http.Handler) http.Handler {
	limiter := newIPLimiter(perMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.allow(ip) {
				writeError(w, pulseerr.RateLimited(perMinute, "1m"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
