// Package metrics exposes prometheus collectors for config fetches, poll
// ticks, publishes, and outbound HTTP traffic.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashgate"

// Label values used across components.
const (
	SourceRemote  = "remote"
	SourceCache   = "cache"
	SourceDefault = "default"

	ResultSuccess      = "success"
	ResultFailure      = "failure"
	ResultRetry        = "retry"
	ResultInconclusive = "inconclusive"
	ResultDenied       = "denied"
	ResultSkipped      = "skipped"
	ResultConflict     = "conflict"

	LoopUpdate = "update"
	LoopAuth   = "auth"
)

// Metrics holds one registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	configFetches    *prometheus.CounterVec
	pollTicks        *prometheus.CounterVec
	publishes        *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
	usingLocalConfig prometheus.Gauge
	corporateNetwork prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		configFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_fetch_total",
			Help:      "Config document loads by source and result.",
		}, []string{"source", "result"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Background poll ticks by loop and result.",
		}, []string{"loop", "result"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Config publishes by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outbound HTTP requests by status code and method.",
		}, []string{"code", "method"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Outbound HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Outbound HTTP requests currently in flight.",
		}),
		usingLocalConfig: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "using_local_config",
			Help:      "1 when the last load fell back to the local cache or defaults.",
		}),
		corporateNetwork: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corporate_network",
			Help:      "1 when outbound traffic is routed through the corporate proxy.",
		}),
	}
	m.registry.MustRegister(
		m.configFetches,
		m.pollTicks,
		m.publishes,
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
		m.usingLocalConfig,
		m.corporateNetwork,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentRoundTripper wraps next with in-flight, counter, and latency
// instrumentation.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if m == nil {
		return next
	}
	return promhttp.InstrumentRoundTripperInFlight(m.httpInFlight,
		promhttp.InstrumentRoundTripperCounter(m.httpRequests,
			promhttp.InstrumentRoundTripperDuration(m.httpDuration, next),
		),
	)
}

// ConfigFetch counts one load outcome.
func (m *Metrics) ConfigFetch(source, result string) {
	if m == nil {
		return
	}
	m.configFetches.WithLabelValues(source, result).Inc()
}

// PollTick counts one poll tick outcome.
func (m *Metrics) PollTick(loop, result string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(loop, result).Inc()
}

// Publish counts one publish outcome.
func (m *Metrics) Publish(result string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(result).Inc()
}

// SetUsingLocalConfig records whether the current document is a fallback.
func (m *Metrics) SetUsingLocalConfig(v bool) {
	if m == nil {
		return
	}
	m.usingLocalConfig.Set(boolToFloat(v))
}

// SetCorporateNetwork records the detected network context.
func (m *Metrics) SetCorporateNetwork(v bool) {
	if m == nil {
		return
	}
	m.corporateNetwork.Set(boolToFloat(v))
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
