// Package rpc builds the resilient JSON-RPC client used to read one chain.
//
// The client combines the pieces in the sub-packages:
//
//   - provider/       - HTTPProvider, one JSON-RPC endpoint behind a circuit breaker
//   - routing/        - retry with backoff and failover across the endpoints of a chain
//   - budget/         - daily quota tracking per chain and provider
//   - circuitbreaker/ - the per-endpoint breaker
//
// # Quick Start
//
//	tracker := rpc.NewBudget(cfg.Chains)
//	client := rpc.NewChainClient(chainCfg, tracker, slog.Default())
//	defer client.Close()
//
//	result, err := client.Call(ctx, "eth_chainId", nil)
package rpc

import (
	"errors"
	"log/slog"

	"github.com/vietddude/textchain/internal/core/config"
	"github.com/vietddude/textchain/internal/infra/rpc/budget"
	"github.com/vietddude/textchain/internal/infra/rpc/provider"
	"github.com/vietddude/textchain/internal/infra/rpc/routing"
)

// ChainClient is the failover client of one chain plus the endpoints it owns.
type ChainClient struct {
	*routing.Failover
	providers []provider.RPCProvider
}

// NewBudget returns a quota tracker for the chains and providers that declare
// a daily quota, or nil when none does.
func NewBudget(chains []config.ChainConfig) *budget.DefaultBudgetTracker {
	quotas := make(map[string]int)
	var tracker *budget.DefaultBudgetTracker

	for _, c := range chains {
		if c.DailyQuota > 0 {
			quotas[c.Key] = c.DailyQuota
		}
	}
	if len(quotas) > 0 {
		tracker = budget.NewBudgetTracker(quotas)
	}

	for _, c := range chains {
		for _, p := range c.Providers {
			if p.DailyQuota <= 0 {
				continue
			}
			if tracker == nil {
				tracker = budget.NewBudgetTracker(nil)
			}
			tracker.SetProviderAllocation(c.Key, p.Name, p.DailyQuota)
		}
	}
	return tracker
}

// NewChainClient creates an HTTPProvider per configured endpoint and wraps
// them in a failover client. tracker may be nil.
func NewChainClient(cfg config.ChainConfig, tracker *budget.DefaultBudgetTracker, logger *slog.Logger) *ChainClient {
	providers := make([]provider.RPCProvider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, provider.NewHTTPProvider(p.Name, p.URL, provider.Options{
			Chain:        cfg.Key,
			Timeout:      p.Timeout,
			RateLimitRPS: cfg.RateLimitRPS,
		}))
	}

	failover := routing.NewFailover(cfg.Key, providers, routing.DefaultRetryConfig, logger)
	if tracker != nil {
		failover.SetBudget(tracker)
	}
	return &ChainClient{Failover: failover, providers: providers}
}

// Close closes every endpoint.
func (c *ChainClient) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
