package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsProcessed tracks inbound SMS commands by parsed command name
	CommandsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textchain_commands_processed_total",
			Help: "Total number of SMS commands processed",
		},
		[]string{"command"},
	)

	// CommandLatency tracks time from parse to reply
	CommandLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textchain_command_latency_seconds",
			Help:    "Command execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// CommandPanics counts handler panics recovered into a generic reply
	CommandPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "textchain_command_panics_total",
			Help: "Total number of recovered command handler panics",
		},
	)

	// ChainQueries tracks per-chain balance query outcomes (ok, error, zero)
	ChainQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textchain_chain_queries_total",
			Help: "Total number of per-chain balance queries",
		},
		[]string{"chain", "outcome"},
	)

	// RPCCallsTotal tracks RPC calls per chain and provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textchain_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per chain and provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textchain_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textchain_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "provider", "method"},
	)

	// CircuitState exposes the breaker state per endpoint (0 closed, 1 half-open, 2 open)
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "textchain_circuit_state",
			Help: "Circuit breaker state per RPC endpoint",
		},
		[]string{"chain", "provider"},
	)

	// RPCQuotaUsage exposes the share of the daily provider quota used (0-100)
	RPCQuotaUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "textchain_rpc_quota_usage_percent",
			Help: "Daily RPC quota usage per provider in percent",
		},
		[]string{"chain", "provider"},
	)

	// WebhookMessages counts inbound webhook deliveries by transport and result
	WebhookMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textchain_webhook_messages_total",
			Help: "Total number of inbound webhook messages",
		},
		[]string{"transport", "result"},
	)
)
