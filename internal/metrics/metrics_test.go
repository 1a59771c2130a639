package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.ObserveValidation("approved", 92)
	m.ObserveValidation("rejected", 30)
	m.IncGenerationAttempt("regenerate")
	m.IncPublish("instagram", "ok")
	m.IncCollaboratorError("replicate", "payment_required")
	m.ObserveJob("due_check", 150*time.Millisecond)

	if got := testutil.ToFloat64(m.validations.WithLabelValues("approved")); got != 1 {
		t.Fatalf("approved count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.publishes.WithLabelValues("instagram", "ok")); got != 1 {
		t.Fatalf("publish count = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.validationScore); n != 1 {
		t.Fatalf("score histogram series = %d, want 1", n)
	}

	// Registering twice reuses the existing collectors.
	again := MustNew(reg)
	again.ObserveValidation("approved", 80)
	if got := testutil.ToFloat64(m.validations.WithLabelValues("approved")); got != 2 {
		t.Fatalf("approved count after reuse = %v, want 2", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveValidation("approved", 90)
	m.IncPublish("facebook", "error")
	m.ObserveJob("x", time.Second)
}
