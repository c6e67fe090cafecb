package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	// NumberFallbacks counts invoices stored under an opaque fallback number.
	NumberFallbacks prometheus.Counter
	// CreateAttempts observes how many inserts each invoice creation needed.
	CreateAttempts prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoicer",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "invoicer",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "invoicer",
		Name:      "invoice_number_fallbacks_total",
		Help:      "Invoices whose number fell back to an opaque id.",
	})
	attempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "invoicer",
		Name:      "invoice_create_attempts",
		Help:      "Insert attempts per invoice creation.",
		Buckets:   []float64{1, 2, 3, 4, 5, 6},
	})

	reg.MustRegister(requests, latency, fallbacks, attempts)
	return &Metrics{
		Requests:        requests,
		LatencyMS:       latency,
		NumberFallbacks: fallbacks,
		CreateAttempts:  attempts,
	}
}

// Instrument records request counts and latency per route.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorderFor(w)

		next.ServeHTTP(rec, r)

		handler := routeName(r)
		m.Requests.WithLabelValues(handler, strconv.Itoa(rec.code())).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	})
}
