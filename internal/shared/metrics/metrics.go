package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private Prometheus registry. All methods are safe on a nil receiver so
// services can run without instrumentation in tests.
type Metrics struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	ledgerTransitions   *prometheus.CounterVec
	insufficientBalance *prometheus.CounterVec
	carryForwards       prometheus.Counter
	outboxPublished     *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	ledgerTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_ledger_transitions_total",
		Help: "Leave request transitions that touched the quarterly ledger",
	}, []string{"transition"})

	insufficientBalance := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_insufficient_balance_total",
		Help: "Leave requests refused because the quarter balance was too low",
	}, []string{"type"})

	carryForwards := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leave_carry_forward_total",
		Help: "Carry-forward runs applied to a destination quarter",
	})

	outboxPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events handed to Kafka, by result",
	}, []string{"result"})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		ledgerTransitions,
		insufficientBalance,
		carryForwards,
		outboxPublished,
		prometheus.NewGoCollector(),
	)

	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		ledgerTransitions:   ledgerTransitions,
		insufficientBalance: insufficientBalance,
		carryForwards:       carryForwards,
		outboxPublished:     outboxPublished,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

func (m *Metrics) LedgerTransition(transition string) {
	if m == nil {
		return
	}
	m.ledgerTransitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) InsufficientBalance(leaveType string) {
	if m == nil {
		return
	}
	m.insufficientBalance.WithLabelValues(leaveType).Inc()
}

func (m *Metrics) CarryForward() {
	if m == nil {
		return
	}
	m.carryForwards.Inc()
}

func (m *Metrics) OutboxPublished(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.outboxPublished.WithLabelValues(result).Inc()
}
