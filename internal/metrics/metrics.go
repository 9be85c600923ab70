package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	advances    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questforge",
			Name:      "transitions_total",
			Help:      "Submission state transitions.",
		}, []string{"entity", "from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questforge",
			Name:      "rejections_total",
			Help:      "Engine operations refused, by error code.",
		}, []string{"code"}),
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questforge",
			Name:      "stage_advances_total",
			Help:      "Project stage advances, by target stage.",
		}, []string{"stage", "manual"}),
	}
	reg.MustRegister(m.transitions, m.rejections, m.advances,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Transition(entity, from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(entity, from, to).Inc()
}

func (m *Metrics) Rejected(code string) {
	if m == nil || code == "" {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
}

func (m *Metrics) Advanced(stage string, manual bool) {
	if m == nil {
		return
	}
	label := "false"
	if manual {
		label = "true"
	}
	m.advances.WithLabelValues(stage, label).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
