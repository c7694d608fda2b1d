// Package budget tracks daily RPC quotas per chain and provider.
//
// Paid JSON-RPC plans cap requests per day. The tracker counts calls and lets
// the failover client skip a provider before its plan starts rejecting
// requests.
package budget

import (
	"sync"
	"time"

	"github.com/vietddude/textchain/internal/metrics"
)

// providerHeadroom is the share of a provider allocation that may be used.
const providerHeadroom = 95.0

// UsageStats holds quota usage statistics.
type UsageStats struct {
	TotalCalls      int
	DailyLimit      int
	RemainingCalls  int
	UsagePercentage float64
	NextResetAt     time.Time
}

// BudgetTracker manages RPC quotas.
type BudgetTracker interface {
	RecordCall(chain, providerName, method string)
	GetUsage(chain string) UsageStats
	GetProviderUsage(chain, providerName string) UsageStats
	CanUseProvider(chain, providerName string) bool
	Reset()
}

type chainBudget struct {
	totalCalls          int
	dailyAllocation     int
	methodCalls         map[string]int
	providerCalls       map[string]int
	providerAllocations map[string]int
}

func newChainBudget(allocation int) *chainBudget {
	return &chainBudget{
		dailyAllocation:     allocation,
		methodCalls:         make(map[string]int),
		providerCalls:       make(map[string]int),
		providerAllocations: make(map[string]int),
	}
}

// DefaultBudgetTracker implements BudgetTracker with per-chain and per-provider
// counters that reset at local midnight.
type DefaultBudgetTracker struct {
	mu         sync.RWMutex
	chainUsage map[string]*chainBudget
	resetTime  time.Time
	now        func() time.Time
}

// NewBudgetTracker creates a tracker. quotas maps chain keys to their daily
// call allocation; a chain without a positive quota is unlimited.
func NewBudgetTracker(quotas map[string]int) *DefaultBudgetTracker {
	tracker := &DefaultBudgetTracker{
		chainUsage: make(map[string]*chainBudget),
		now:        time.Now,
	}
	tracker.resetTime = nextMidnight(tracker.now())

	for chain, quota := range quotas {
		tracker.chainUsage[chain] = newChainBudget(quota)
	}
	return tracker
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// RecordCall records a call for quota tracking.
func (bt *DefaultBudgetTracker) RecordCall(chain, providerName, method string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if !bt.now().Before(bt.resetTime) {
		bt.resetUnsafe()
	}

	budget, ok := bt.chainUsage[chain]
	if !ok {
		budget = newChainBudget(0)
		bt.chainUsage[chain] = budget
	}

	budget.totalCalls++
	budget.methodCalls[method]++
	budget.providerCalls[providerName]++

	if usage := bt.providerUsageUnsafe(budget, providerName); usage.DailyLimit > 0 {
		metrics.RPCQuotaUsage.WithLabelValues(chain, providerName).Set(usage.UsagePercentage)
	}
}

// GetUsage returns usage statistics for a chain.
func (bt *DefaultBudgetTracker) GetUsage(chain string) UsageStats {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	budget, ok := bt.chainUsage[chain]
	if !ok {
		return UsageStats{NextResetAt: bt.resetTime}
	}
	return usage(budget.totalCalls, budget.dailyAllocation, bt.resetTime)
}

// GetProviderUsage returns usage statistics for a specific provider.
func (bt *DefaultBudgetTracker) GetProviderUsage(chain, providerName string) UsageStats {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	budget, ok := bt.chainUsage[chain]
	if !ok {
		return UsageStats{NextResetAt: bt.resetTime}
	}
	return bt.providerUsageUnsafe(budget, providerName)
}

// providerUsageUnsafe falls back to the chain allocation when the provider
// has none of its own.
func (bt *DefaultBudgetTracker) providerUsageUnsafe(budget *chainBudget, providerName string) UsageStats {
	allocation := budget.providerAllocations[providerName]
	if allocation == 0 {
		allocation = budget.dailyAllocation
	}
	return usage(budget.providerCalls[providerName], allocation, bt.resetTime)
}

func usage(calls, limit int, resetAt time.Time) UsageStats {
	stats := UsageStats{
		TotalCalls:  calls,
		DailyLimit:  limit,
		NextResetAt: resetAt,
	}
	if limit <= 0 {
		return stats
	}
	stats.RemainingCalls = max(limit-calls, 0)
	stats.UsagePercentage = float64(calls) / float64(limit) * 100
	return stats
}

// CanUseProvider reports whether both the chain and the provider have quota
// remaining. Unlimited chains always pass.
func (bt *DefaultBudgetTracker) CanUseProvider(chain, providerName string) bool {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	budget, ok := bt.chainUsage[chain]
	if !ok {
		return true
	}
	if !bt.now().Before(bt.resetTime) {
		// counters are stale; RecordCall resets them on the next call
		return true
	}
	if budget.dailyAllocation > 0 && budget.totalCalls >= budget.dailyAllocation {
		return false
	}

	u := bt.providerUsageUnsafe(budget, providerName)
	return u.DailyLimit <= 0 || u.UsagePercentage < providerHeadroom
}

// Reset resets all usage counters.
func (bt *DefaultBudgetTracker) Reset() {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.resetUnsafe()
}

// SetProviderAllocation sets the daily allocation for a specific provider.
func (bt *DefaultBudgetTracker) SetProviderAllocation(chain, providerName string, allocation int) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	budget, ok := bt.chainUsage[chain]
	if !ok {
		budget = newChainBudget(0)
		bt.chainUsage[chain] = budget
	}
	budget.providerAllocations[providerName] = allocation
}

func (bt *DefaultBudgetTracker) resetUnsafe() {
	for _, budget := range bt.chainUsage {
		budget.totalCalls = 0
		budget.methodCalls = make(map[string]int)
		budget.providerCalls = make(map[string]int)
	}
	bt.resetTime = nextMidnight(bt.now())
}
