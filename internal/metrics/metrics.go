// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ToolCalls counts tool executions by server, tool, and outcome.
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omni",
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool executions by server, tool, and outcome.",
	}, []string{"server", "tool", "outcome"})

	// ModelCalls counts model completions by outcome.
	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omni",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Model completion calls by outcome.",
	}, []string{"outcome"})

	// ServerStarts counts tool-server start attempts by outcome.
	ServerStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omni",
		Subsystem: "toolserver",
		Name:      "starts_total",
		Help:      "Tool server start attempts by server and outcome.",
	}, []string{"server", "outcome"})

	// AgentQueries counts agent queries by mode (stream or sync) and outcome.
	AgentQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omni",
		Subsystem: "agent",
		Name:      "queries_total",
		Help:      "Agent queries by mode and outcome.",
	}, []string{"mode", "outcome"})
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
