// Package metrics holds the relay's Prometheus collectors. All methods are
// safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "botrelay"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	unaryCalls     *prometheus.CounterVec
	unaryDuration  prometheus.Histogram
	streamMessages prometheus.Counter
	streamEvents   *prometheus.CounterVec
	streamState    prometheus.Gauge
	wsClients      prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		unaryCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_all_calls_total",
			Help:      "ListAll calls issued, by resulting status code.",
		}, []string{"code"}),
		unaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_all_duration_seconds",
			Help:      "ListAll round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		streamMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Messages received on the broadcast subscription.",
		}),
		streamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_stream_events_total",
			Help:      "Subscription lifecycle events (opened, ended, errored, resubscribed).",
		}, []string{"event"}),
		streamState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_stream_state",
			Help:      "Current subscription state as its numeric value.",
		}),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket relay clients.",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ObserveListAll(code string, d time.Duration) {
	if m == nil {
		return
	}
	m.unaryCalls.WithLabelValues(code).Inc()
	m.unaryDuration.Observe(d.Seconds())
}

func (m *Metrics) StreamMessage() {
	if m == nil {
		return
	}
	m.streamMessages.Inc()
}

func (m *Metrics) StreamEvent(event string) {
	if m == nil {
		return
	}
	m.streamEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SetStreamState(state int) {
	if m == nil {
		return
	}
	m.streamState.Set(float64(state))
}

func (m *Metrics) WebsocketClientConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

func (m *Metrics) WebsocketClientDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}
