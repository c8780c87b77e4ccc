// Package metrics holds the Prometheus instruments for the routing service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	routingOutcomes   *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	excludedCandidate *prometheus.CounterVec
	callsRecorded     *prometheus.CounterVec
}

// New registers every instrument on a fresh registry, plus Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		routingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voice_routing",
			Name:      "routing_outcomes_total",
			Help:      "Routing webhook outcomes by result.",
		}, []string{"result"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voice_routing",
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of external calls by service, operation and result.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service", "operation", "result"}),
		excludedCandidate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voice_routing",
			Name:      "candidates_excluded_total",
			Help:      "Routing agents excluded from selection by reason.",
		}, []string{"reason"}),
		callsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voice_routing",
			Name:      "call_history_events_total",
			Help:      "Call-analyzed webhook events by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.routingOutcomes,
		m.upstreamDuration,
		m.excludedCandidate,
		m.callsRecorded,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) RoutingOutcome(result string) {
	if m == nil {
		return
	}
	m.routingOutcomes.WithLabelValues(result).Inc()
}

func (m *Metrics) CandidateExcluded(reason string) {
	if m == nil {
		return
	}
	m.excludedCandidate.WithLabelValues(reason).Inc()
}

func (m *Metrics) CallRecorded(result string) {
	if m == nil {
		return
	}
	m.callsRecorded.WithLabelValues(result).Inc()
}

// ObserveUpstream records one external call.
func (m *Metrics) ObserveUpstream(service, operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(service, operation, upstreamResult(err)).Observe(elapsed.Seconds())
}

func upstreamResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
