package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCalls counts outbound connector calls by method and outcome
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrench",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Outbound JSON-RPC connector calls",
	}, []string{"connector", "method", "ok"})

	// RPCDuration observes outbound call latency
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wrench",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "Outbound JSON-RPC connector call duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"connector", "method"})

	// ProposalExecutions counts execution attempts by action type and outcome
	ProposalExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wrench",
		Subsystem: "agent",
		Name:      "proposal_executions_total",
		Help:      "Proposal execution attempts",
	}, []string{"action_type", "outcome"})
)
