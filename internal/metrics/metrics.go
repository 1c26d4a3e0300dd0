// Package metrics exposes the prometheus counters of a prediction run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry       *prometheus.Registry
	runs           *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	llmRequests    *prometheus.CounterVec
	reportsWritten *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conflictcast",
			Name:      "runs_total",
			Help:      "Prediction runs by outcome.",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conflictcast",
			Name:      "tool_calls_total",
			Help:      "Tool invocations requested by the models.",
		}, []string{"tool"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conflictcast",
			Name:      "llm_requests_total",
			Help:      "Model round trips by provider and outcome.",
		}, []string{"provider", "outcome"}),
		reportsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conflictcast",
			Name:      "reports_written_total",
			Help:      "Report artifacts written by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.runs, m.toolCalls, m.llmRequests, m.reportsWritten,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ToolCalled(tool string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool).Inc()
}

func (m *Metrics) LLMRequest(provider string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmRequests.WithLabelValues(provider, outcome).Inc()
}

// ReportWritten counts an artifact; kind is json, text, fallback or archive.
func (m *Metrics) ReportWritten(kind string) {
	if m == nil {
		return
	}
	m.reportsWritten.WithLabelValues(kind).Inc()
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
