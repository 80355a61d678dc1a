package rqlite

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/preslavrachev/rqlitestore/core"
	"github.com/preslavrachev/rqlitestore/internal/rqlitetest"
)

// counterValue sums the counters of a family whose labels include the given ones
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, m := range family.GetMetric() {
			for key, value := range labels {
				found := false
				for _, pair := range m.GetLabel() {
					if pair.GetName() == key && pair.GetValue() == value {
						found = true
					}
				}
				if !found {
					continue metrics
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetricsRecordOperations(t *testing.T) {
	leader := setupTestTable(t)
	follower := rqlitetest.NewNode(t)
	follower.RedirectTo(leader, -1)

	reg := prometheus.NewRegistry()
	adapter := newTestAdapter(t, follower, nil, WithMetrics(NewMetrics(reg)))
	ctx := context.Background()

	if _, err := adapter.Save(ctx, testRef, core.Entity{"id": "1", "email": "a@example.com"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	adapter.Save(ctx, testRef, core.Entity{"id": "2", "email": "a@example.com"})

	if got := counterValue(t, reg, "rqlite_store_operations_total", map[string]string{"op": "save", "outcome": "ok"}); got != 1 {
		t.Errorf("Expected 1 successful save, got %v", got)
	}
	if got := counterValue(t, reg, "rqlite_store_operations_total", map[string]string{"op": "save", "outcome": "unique_violation"}); got != 1 {
		t.Errorf("Expected 1 failed save, got %v", got)
	}
	if got := counterValue(t, reg, "rqlite_store_redirects_total", nil); got != 4 {
		t.Errorf("Expected 4 redirects, got %v", got)
	}
	if got := counterValue(t, reg, "rqlite_store_requests_total", map[string]string{"code": "301"}); got != 4 {
		t.Errorf("Expected 4 redirect responses, got %v", got)
	}
	if got := counterValue(t, reg, "rqlite_store_requests_total", map[string]string{"endpoint": "/db/execute", "code": "200"}); got != 2 {
		t.Errorf("Expected 2 execute requests, got %v", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	m.observeRequest("/db/query", 200)
	m.observeRedirect()
	m.observeOperation("load", "ok", 0)
}
