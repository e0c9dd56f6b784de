// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prompt outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
	OutcomeInvalid  = "invalid"
	OutcomeTrusted  = "trusted"
	OutcomeFailed   = "failed"
)

var (
	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "netconsole_sessions_open",
			Help: "Number of NETCONF sessions held in the registry",
		},
	)

	PromptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netconsole_prompts_total",
			Help: "Interactive prompts sent to browsers, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netconsole_rpc_duration_seconds",
			Help:    "Duration of NETCONF operations issued by the console",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netconsole_http_requests_total",
			Help: "HTTP requests served, by method and status code",
		},
		[]string{"method", "status"},
	)
)

// ObserveRPC records the duration of an operation started at start.
func ObserveRPC(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RPCDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}
