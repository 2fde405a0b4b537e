// Package prom exposes the storefront metrics in Prometheus format.
package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/target/microshop-ui/internal/observability/metrics"
)

// Recorder implements metrics.Recorder with Prometheus collectors.
type Recorder struct {
	transitions    *prometheus.CounterVec
	initTotal      *prometheus.CounterVec
	initDuration   *prometheus.HistogramVec
	guard          *prometheus.CounterVec
	gatewayTotal   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	clients        prometheus.Gauge

	gatherer prometheus.Gatherer
}

var _ metrics.Recorder = (*Recorder)(nil)

// NewRegistry creates a private registry with Go and process collectors and a Recorder bound to it.
func NewRegistry(namespace string) (*prometheus.Registry, *Recorder) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg, reg, namespace)
}

// New registers the storefront collectors on reg.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer, namespace string) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state machine transitions by source and target state.",
		}, []string{"from", "to", "authenticated"}),
		initTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_init_total",
			Help:      "Identity provider initialization cycles by result.",
		}, []string{"result"}),
		initDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_init_duration_seconds",
			Help:      "Duration of identity provider initialization cycles.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		guard: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by section.",
		}, []string{"section", "decision"}),
		gatewayTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Gateway requests by operation and status class.",
		}, []string{"operation", "status"}),
		gatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_active",
			Help:      "Browser clients currently holding a session state machine.",
		}),
		gatherer: gatherer,
	}
}

func (r *Recorder) SessionTransition(in metrics.TransitionMetric) {
	auth := "false"
	if in.Authenticated {
		auth = "true"
	}
	r.transitions.WithLabelValues(in.From, in.To, auth).Inc()
}

func (r *Recorder) SessionInit(in metrics.InitMetric) {
	r.initTotal.WithLabelValues(in.Result).Inc()
	if in.Duration > 0 {
		r.initDuration.WithLabelValues(in.Result).Observe(in.Duration.Seconds())
	}
}

func (r *Recorder) GuardDecision(section, decision string) {
	r.guard.WithLabelValues(section, decision).Inc()
}

func (r *Recorder) GatewayCall(in metrics.GatewayMetric) {
	r.gatewayTotal.WithLabelValues(in.Operation, metrics.StatusClass(in.Status)).Inc()
	if in.Duration > 0 {
		r.gatewayLatency.WithLabelValues(in.Operation).Observe(in.Duration.Seconds())
	}
}

func (r *Recorder) ClientsActive(n int) {
	r.clients.Set(float64(n))
}

// Handler serves the bound gatherer, or the default registry when none was given.
func (r *Recorder) Handler() http.Handler {
	if r.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
