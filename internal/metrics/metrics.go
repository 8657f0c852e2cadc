package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ClaimLatency measures the time between a job's scheduled_at and the
	// moment a worker claims it — the spec's eligibility-to-dispatch gap.
	ClaimLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "taskforge",
		Name:      "claim_latency_seconds",
		Help:      "Time from a job's scheduled_at to it being claimed.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	JobExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskforge",
		Name:      "job_execution_duration_seconds",
		Help:      "Duration of one job execution, by outcome.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"outcome"})

	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskforge",
		Name:      "worker_jobs_in_flight",
		Help:      "Number of jobs currently being executed across the pool.",
	})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskforge",
		Name:      "jobs_completed_total",
		Help:      "Total jobs finished, by outcome (succeeded, retrying, failed).",
	}, []string{"outcome"})

	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "taskforge",
		Name:      "queue_depth",
		Help:      "Snapshot of queue depth per tier.",
	}, []string{"tier"})

	ReclaimScanRescuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "taskforge",
		Name:      "reclaim_scan_rescued_total",
		Help:      "Total jobs republished to the fast tier by the reclaim scan.",
	})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskforge",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskforge",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ClaimLatency,
		JobExecutionDuration,
		JobsInFlight,
		JobsCompletedTotal,
		QueueDepth,
		ReclaimScanRescuedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer returns the metrics-only HTTP server. Health endpoints are
// mounted separately (see internal/health) since they depend on
// component handles the metrics package must not import.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
