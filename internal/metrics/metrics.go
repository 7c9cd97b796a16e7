// Package metrics exports audit and HTTP counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/model"
)

const MetricsNamespace = "rankdesk"

var _ audit.Metrics = (*Metrics)(nil)

type Metrics struct {
	AuditsStarted  prometheus.Counter
	AuditsFinished *prometheus.CounterVec
	TasksCreated   *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry, alongside the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWith(reg, reg)
}

// NewWith registers on reg and serves from g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuditsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "audits_started_total",
			Help:      "Audits accepted by the provider",
		}),
		AuditsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "audits_finished_total",
			Help:      "Audits that reached a terminal status",
		}, []string{"status", "reason"}),
		TasksCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tasks_created_total",
			Help:      "Tasks synthesized from audit findings",
		}, []string{"category"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "route", "code"}),
		gatherer: g,
	}
}

func (m *Metrics) AuditStarted() { m.AuditsStarted.Inc() }

func (m *Metrics) AuditFinished(status model.AuditStatus, reason model.FailureReason) {
	m.AuditsFinished.WithLabelValues(string(status), string(reason)).Inc()
}

func (m *Metrics) TaskCreated(c audit.Category) {
	m.TasksCreated.WithLabelValues(string(c)).Inc()
}

// ObserveRequest counts one served request.
func (m *Metrics) ObserveRequest(method, route string, code int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
