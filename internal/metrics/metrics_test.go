package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("GET", "/api/report", 200, 20*time.Millisecond)
	m.ObserveHTTP("GET", "/api/report", 200, 30*time.Millisecond)
	m.ExpenseWritten("created")
	m.Recognition("applied", time.Second)
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	m.PublishFailed()

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/report", "200")); got != 2 {
		t.Errorf("http requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.expensesWritten.WithLabelValues("created")); got != 1 {
		t.Errorf("expenses written = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.recognitions.WithLabelValues("applied")); got != 1 {
		t.Errorf("recognitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.streamSubscribers); got != 1 {
		t.Errorf("subscribers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.publishFailures); got != 1 {
		t.Errorf("publish failures = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.ExpenseWritten("created")
	m.Recognition("failed", time.Second)
	m.StreamOpened()
	m.StreamClosed()
	m.PublishFailed()
}
