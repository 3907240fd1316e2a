// Package metrics holds the Prometheus collectors of the service. All
// methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spendly"

type Metrics struct {
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	expensesWritten     *prometheus.CounterVec
	recognitions        *prometheus.CounterVec
	recognitionDuration prometheus.Histogram
	streamSubscribers   prometheus.Gauge
	publishFailures     prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		expensesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_written_total",
			Help:      "Expense writes by operation.",
		}, []string{"op"}),
		recognitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_recognitions_total",
			Help:      "Receipt recognition attempts by outcome.",
		}, []string{"outcome"}),
		recognitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receipt_recognition_duration_seconds",
			Help:      "Latency of receipt extraction calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		streamSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open live update streams.",
		}),
		publishFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amqp_publish_failures_total",
			Help:      "Expense change messages that could not be published.",
		}),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ExpenseWritten(op string) {
	if m == nil {
		return
	}
	m.expensesWritten.WithLabelValues(op).Inc()
}

func (m *Metrics) Recognition(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recognitions.WithLabelValues(outcome).Inc()
	m.recognitionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) StreamOpened() {
	if m != nil {
		m.streamSubscribers.Inc()
	}
}

func (m *Metrics) StreamClosed() {
	if m != nil {
		m.streamSubscribers.Dec()
	}
}

func (m *Metrics) PublishFailed() {
	if m != nil {
		m.publishFailures.Inc()
	}
}
