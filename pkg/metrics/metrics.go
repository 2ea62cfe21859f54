// Package metrics exposes prometheus instruments for sessions, queries and
// catalog navigation.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "snowflake_catalog"

var (
	// sessionOpens counts physical open attempts.
	// Labels: outcome (success, error)
	sessionOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "opens_total",
		Help:      "Physical session open attempts by outcome",
	}, []string{"outcome"})

	// sessionOpenDuration measures open latency, including SSO waits.
	sessionOpenDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "open_duration_seconds",
		Help:      "Time to establish and configure a session",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// queryDuration measures statement latency.
	// Labels: outcome (ok, error)
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "Statement execution latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// queryRows counts rows returned to callers.
	queryRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "rows_total",
		Help:      "Rows returned by successful statements",
	})

	// navigatorRequests counts childrenOf calls.
	// Labels: node_type, outcome (ok, query_error, connection_error, unmatched)
	navigatorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "navigator",
		Name:      "requests_total",
		Help:      "Catalog navigation requests by node type and outcome",
	}, []string{"node_type", "outcome"})

	// toolCalls counts MCP tool invocations.
	// Labels: tool, outcome (ok, tool_error, error, security_violation)
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mcp",
		Name:      "tool_calls_total",
		Help:      "MCP tool calls by tool and outcome",
	}, []string{"tool", "outcome"})

	// httpRequests measures HTTP transport latency.
	// Labels: path, code
	httpRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP requests served by the MCP transport",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path", "code"})
)

// RecordSessionOpen records one physical open attempt.
func RecordSessionOpen(durationSec float64, success bool) {
	sessionOpenDuration.Observe(durationSec)
	outcome := "success"
	if !success {
		outcome = "error"
	}
	sessionOpens.WithLabelValues(outcome).Inc()
}

// RecordQuery records one normalized execution.
func RecordQuery(durationSec float64, rows int, failed bool) {
	if failed {
		queryDuration.WithLabelValues("error").Observe(durationSec)
		return
	}
	queryDuration.WithLabelValues("ok").Observe(durationSec)
	queryRows.Add(float64(rows))
}

// RecordNavigation records one childrenOf call.
//
// Inputs:
//
//	nodeType - The node type being expanded.
//	outcome - "ok", "query_error", "connection_error" or "unmatched".
func RecordNavigation(nodeType, outcome string) {
	navigatorRequests.WithLabelValues(nodeType, outcome).Inc()
}

// RecordToolCall records one MCP tool call.
func RecordToolCall(tool, outcome string) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(path string, status int, durationSec float64) {
	httpRequests.WithLabelValues(path, strconv.Itoa(status)).Observe(durationSec)
}
