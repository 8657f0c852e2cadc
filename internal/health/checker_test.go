package health_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/arjunmehta-dev/taskforge/internal/health"
	"github.com/prometheus/client_golang/prometheus"
)

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockSizer struct {
	size int
	err  error
}

func (m *mockSizer) Size(_ context.Context) (int, error) { return m.size, m.err }

func newTestChecker(p health.Pinger, q health.Sizer) (*health.Checker, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return health.NewChecker(p, q, slog.Default(), reg), reg
}

func TestLiveness_AlwaysUp(t *testing.T) {
	c, _ := newTestChecker(&mockPinger{err: errors.New("db down")}, nil)

	result := c.Liveness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if result.Checks != nil {
		t.Fatalf("expected no checks, got %v", result.Checks)
	}
}

func TestReadiness_AllUp(t *testing.T) {
	c, reg := newTestChecker(&mockPinger{}, &mockSizer{size: 3})

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if result.Checks["durable_store"].Status != "up" {
		t.Fatalf("expected durable_store up, got %+v", result.Checks["durable_store"])
	}
	if result.Checks["fast_queue"].Status != "up" {
		t.Fatalf("expected fast_queue up, got %+v", result.Checks["fast_queue"])
	}

	if g := testGauge(t, reg, "durable_store"); g != 1 {
		t.Fatalf("expected gauge 1, got %f", g)
	}
}

func TestReadiness_StoreDown_OverallDown(t *testing.T) {
	c, reg := newTestChecker(&mockPinger{err: errors.New("connection refused")}, &mockSizer{size: 1})

	result := c.Readiness(context.Background())
	if result.Status != "down" {
		t.Fatalf("expected status down, got %s", result.Status)
	}
	if result.Checks["durable_store"].Error == "" {
		t.Fatal("expected error message")
	}
	if g := testGauge(t, reg, "durable_store"); g != 0 {
		t.Fatalf("expected gauge 0, got %f", g)
	}
}

func TestReadiness_FastQueueDown_OverallStaysUp(t *testing.T) {
	c, _ := newTestChecker(&mockPinger{}, &mockSizer{err: errors.New("dial tcp: connection refused")})

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Fatalf("fast queue outage should be advisory, got overall status %s", result.Status)
	}
	if result.Checks["fast_queue"].Status != "down" {
		t.Fatalf("expected fast_queue check to report down, got %+v", result.Checks["fast_queue"])
	}
}

func testGauge(t *testing.T, reg *prometheus.Registry, depLabel string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "taskforge_health_check_up" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "dependency" && lp.GetValue() == depLabel {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric taskforge_health_check_up{dependency=%q} not found", depLabel)
	return 0
}
