package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// healthHandlers serves liveness and readiness. Readiness additionally pings
// the database and Redis and reports host memory/CPU for operator
// visibility, grounded on the teacher's health-check handler.
type healthHandlers struct {
	db    *sqlx.DB
	redis *redis.Client
}

func (h *healthHandlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (h *healthHandlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	host := map[string]interface{}{}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		host["memory_used_percent"] = vm.UsedPercent
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		host["cpu_percent"] = pct[0]
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"ready":  ready,
		"checks": checks,
		"host":   host,
	})
}
