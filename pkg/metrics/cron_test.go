package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRegistererProducesNoopMetrics(t *testing.T) {
	m := NewCronJobMetrics(nil)
	// must not panic
	m.ObserveDuration("subscription-expire", time.Second)
	m.IncSuccess("subscription-expire")
	m.IncFailure("subscription-expire")
	m.AddProcessed("subscription-expire", 3)
}

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("invoice-generation")
	m.IncSuccess("invoice-generation")
	m.IncFailure("company-purge")
	m.AddProcessed("invoice-generation", 5)

	if got := testutil.ToFloat64(m.success.WithLabelValues("invoice-generation")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("company-purge")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.processed.WithLabelValues("invoice-generation")); got != 5 {
		t.Fatalf("expected 5 processed, got %v", got)
	}
}

func TestEmptyJobLabelNormalized(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncSuccess("")
	if got := testutil.ToFloat64(m.success.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected unknown label, got %v", got)
	}
}
