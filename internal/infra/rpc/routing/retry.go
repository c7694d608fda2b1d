// Package routing retries JSON-RPC calls and fails over between the
// endpoints configured for one chain.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/vietddude/textchain/internal/infra/rpc/budget"
	"github.com/vietddude/textchain/internal/infra/rpc/circuitbreaker"
	"github.com/vietddude/textchain/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig keeps the total wait well inside an SMS reply budget.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     2,
	InitialDelay:    200 * time.Millisecond,
	MaxDelay:        time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return ActionFailover
	}

	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case -32700, -32600, -32601, -32602:
			return ActionFatal
		}
	}

	s := err.Error()
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return ActionFatal
	}

	sLower := strings.ToLower(s)
	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "quota") || strings.Contains(sLower, "plan limit") ||
		strings.Contains(sLower, "unauthorized") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "count exceeded") {
		return ActionFailover
	}

	// network, 5xx, malformed bodies
	return ActionRetry
}

// withRetry runs fn with exponential backoff until it succeeds, the error is
// not retryable, or attempts run out.
func withRetry[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ClassifyError(err) != ActionRetry {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(calculateBackoff(attempt, config)):
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// Failover is the RPC client for one chain. Providers are tried in
// configuration order; each gets the full retry budget.
type Failover struct {
	chain     string
	providers []provider.RPCProvider
	config    RetryConfig
	budget    budget.BudgetTracker
	logger    *slog.Logger
}

// ErrBudgetExhausted is returned when every provider is over its daily quota.
var ErrBudgetExhausted = errors.New("rpc budget exhausted")

// NewFailover creates a client over the given providers.
func NewFailover(chain string, providers []provider.RPCProvider, config RetryConfig, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover{
		chain:     chain,
		providers: providers,
		config:    config,
		logger:    logger.With("chain", chain),
	}
}

// SetBudget makes the client skip providers that are over their daily quota.
func (f *Failover) SetBudget(b budget.BudgetTracker) {
	f.budget = b
}

// Providers returns the underlying endpoints.
func (f *Failover) Providers() []provider.RPCProvider {
	return f.providers
}

// Call tries each provider in turn.
func (f *Failover) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	return failover(ctx, f, method, func(p provider.RPCProvider) (json.RawMessage, error) {
		return withRetry(ctx, f.config, func() (json.RawMessage, error) {
			return p.Call(ctx, method, params)
		})
	})
}

// BatchCall tries each provider in turn with the whole batch.
func (f *Failover) BatchCall(ctx context.Context, requests []provider.BatchRequest) ([]provider.BatchResponse, error) {
	return failover(ctx, f, "batch", func(p provider.RPCProvider) ([]provider.BatchResponse, error) {
		return withRetry(ctx, f.config, func() ([]provider.BatchResponse, error) {
			return p.BatchCall(ctx, requests)
		})
	})
}

func failover[T any](ctx context.Context, f *Failover, method string, call func(provider.RPCProvider) (T, error)) (T, error) {
	var zero T
	if len(f.providers) == 0 {
		return zero, fmt.Errorf("no providers for chain %s", f.chain)
	}

	lastErr := ErrBudgetExhausted
	for _, p := range f.providers {
		if f.budget != nil {
			if !f.budget.CanUseProvider(f.chain, p.Name()) {
				f.logger.Debug("provider over daily quota, skipping", "provider", p.Name())
				continue
			}
			f.budget.RecordCall(f.chain, p.Name(), method)
		}

		result, err := call(p)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ClassifyError(err) == ActionFatal {
			return zero, fmt.Errorf("fatal error from provider %s: %w", p.Name(), err)
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		f.logger.Debug("provider failed, trying next", "provider", p.Name(), "error", err)
	}

	return zero, fmt.Errorf("all providers failed: %w", lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
