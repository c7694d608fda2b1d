// Package provider implements JSON-RPC endpoints used to read chain state.
//
// This package contains:
//   - RPCProvider: the interface the routing layer and chain adapters use
//   - HTTPProvider: JSON-RPC 2.0 over HTTP guarded by a circuit breaker
//     and an optional request rate limit
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RPCProvider is a single JSON-RPC endpoint.
type RPCProvider interface {
	// Name returns the provider identifier (e.g., "alchemy", "public")
	Name() string

	// Health returns current health metrics
	Health() HealthStatus

	// Call makes a single RPC request
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)

	// BatchCall makes multiple RPC calls in one request.
	// Responses are returned in request order.
	BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error)

	// Close cleans up resources
	Close() error
}

// BatchRequest represents a single request in a batch call.
type BatchRequest struct {
	Method string
	Params []any
}

// BatchResponse represents a single response from a batch call.
type BatchResponse struct {
	Result json.RawMessage
	Error  error
}

// RPCError is a JSON-RPC error object returned by a reachable endpoint.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Circuit       string        `json:"circuit"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}
