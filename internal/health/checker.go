// Package health exposes liveness/readiness checks against the engine's
// two storage tiers, mounted as a plain net/http handler so it can sit
// either behind the metrics server or the main API router.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger is satisfied by the durable store's connection pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sizer is satisfied by the fast queue; a failed Size() call means the
// tier is unreachable, which is advisory-severity, not fatal.
type Sizer interface {
	Size(ctx context.Context) (int, error)
}

type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Result struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker verifies that the durable store and fast queue are reachable.
type Checker struct {
	db     Pinger
	queue  Sizer
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

func NewChecker(db Pinger, queue Sizer, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "taskforge",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		db:     db,
		queue:  queue,
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) Result {
	return Result{Status: "up"}
}

// Readiness pings the durable store and, best-effort, the fast queue.
// A down fast queue is advisory and does not flip overall status to
// down — the coordinator falls back to a store scan in that case.
func (c *Checker) Readiness(ctx context.Context) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := Result{Status: "up", Checks: make(map[string]CheckResult)}

	if err := c.db.Ping(checkCtx); err != nil {
		c.logger.Warn("durable store health check failed", "error", err)
		result.Status = "down"
		result.Checks["durable_store"] = CheckResult{Status: "down", Error: err.Error()}
		c.gauge.WithLabelValues("durable_store").Set(0)
	} else {
		result.Checks["durable_store"] = CheckResult{Status: "up"}
		c.gauge.WithLabelValues("durable_store").Set(1)
	}

	if c.queue != nil {
		if _, err := c.queue.Size(checkCtx); err != nil {
			c.logger.Warn("fast queue health check failed", "error", err)
			result.Checks["fast_queue"] = CheckResult{Status: "down", Error: err.Error()}
			c.gauge.WithLabelValues("fast_queue").Set(0)
		} else {
			result.Checks["fast_queue"] = CheckResult{Status: "up"}
			c.gauge.WithLabelValues("fast_queue").Set(1)
		}
	}

	return result
}

// Mux returns a handler exposing /livez and /readyz.
func (c *Checker) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		res := c.Readiness(r.Context())
		status := http.StatusOK
		if res.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, res)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
