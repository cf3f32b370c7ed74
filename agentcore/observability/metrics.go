// Package observability provides Prometheus metrics instrumentation for the agentcore.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PIPELINE METRICS
// =============================================================================

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_pipeline_runs_total",
			Help: "Total number of end-to-end pipeline runs",
		},
		[]string{"status"}, // status: answered, exhausted, execution_error, error
	)

	pipelineDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabletalk_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
)

// =============================================================================
// REFINEMENT METRICS
// =============================================================================

var (
	refinementRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_refinement_runs_total",
			Help: "Total number of refinement runs",
		},
		[]string{"outcome"}, // outcome: safe_query, iterations_exhausted
	)

	refinementDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabletalk_refinement_duration_seconds",
			Help:    "Refinement run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_refinement_attempts_total",
			Help: "Total number of refinement attempt stage results",
		},
		[]string{"stage", "status"}, // stage: generation, lexical, semantic
	)
)

// =============================================================================
// LLM METRICS
// =============================================================================

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_llm_calls_total",
			Help: "Total number of LLM API calls",
		},
		[]string{"provider", "model", "status"}, // status: success, error
	)

	llmDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabletalk_llm_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)
)

// =============================================================================
// QUERY METRICS
// =============================================================================

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabletalk_queries_total",
			Help: "Total number of approved statements executed",
		},
		[]string{"status"}, // status: success, error
	)

	queryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabletalk_query_duration_seconds",
			Help:    "Statement execution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordPipelineRun records end-to-end pipeline metrics.
func RecordPipelineRun(status string, durationMS int) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
	pipelineDurationSeconds.WithLabelValues(status).Observe(float64(durationMS) / 1000.0)
}

// RecordRun records refinement run metrics.
func RecordRun(outcome string, durationMS int) {
	refinementRunsTotal.WithLabelValues(outcome).Inc()
	refinementDurationSeconds.WithLabelValues(outcome).Observe(float64(durationMS) / 1000.0)
}

// RecordAttempt records the result of one attempt stage.
func RecordAttempt(stage string, status string) {
	attemptsTotal.WithLabelValues(stage, status).Inc()
}

// RecordLLMCall records LLM call metrics.
func RecordLLMCall(provider string, model string, status string, durationMS int) {
	llmCallsTotal.WithLabelValues(provider, model, status).Inc()
	llmDurationSeconds.WithLabelValues(provider, model).Observe(float64(durationMS) / 1000.0)
}

// RecordQueryExecution records statement execution metrics.
func RecordQueryExecution(status string, durationMS int) {
	queriesTotal.WithLabelValues(status).Inc()
	queryDurationSeconds.WithLabelValues(status).Observe(float64(durationMS) / 1000.0)
}
