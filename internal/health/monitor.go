package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/textchain/internal/infra/rpc/provider"
)

const defaultCacheTTL = 10 * time.Second

// Pinger is implemented by the postgres and redis clients.
type Pinger interface {
	Health(ctx context.Context) error
}

type dependency struct {
	name     string
	pinger   Pinger
	critical bool
}

// Monitor aggregates health status from the stores and chain providers.
type Monitor struct {
	deps       []dependency
	chains     map[string][]provider.RPCProvider
	cacheTTL   time.Duration
	now        func() time.Time
	lastCheck  time.Time
	lastReport map[string]ComponentHealth
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		chains:     make(map[string][]provider.RPCProvider),
		cacheTTL:   defaultCacheTTL,
		now:        time.Now,
		lastReport: make(map[string]ComponentHealth),
	}
}

// AddDependency registers a store. A failing critical dependency makes the
// whole system critical; any other failure only degrades it.
func (m *Monitor) AddDependency(name string, p Pinger, critical bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps = append(m.deps, dependency{name: name, pinger: p, critical: critical})
}

// AddChain registers the providers serving a chain.
func (m *Monitor) AddChain(chain string, providers []provider.RPCProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chains[chain] = providers
}

// CheckHealth returns the status of every registered component. Results are
// cached for a short interval so probes do not hammer the stores.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ComponentHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastCheck) < m.cacheTTL && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]ComponentHealth, len(m.deps)+len(m.chains))

	for _, d := range m.deps {
		h := ComponentHealth{Name: d.name, Status: StatusHealthy}
		if err := d.pinger.Health(ctx); err != nil {
			h.Error = err.Error()
			h.Status = StatusDegraded
			if d.critical {
				h.Status = StatusCritical
			}
		}
		report[d.name] = h
	}

	for chain, providers := range m.chains {
		report["chain:"+chain] = chainHealth(chain, providers)
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}

// chainHealth degrades a chain when any provider is unavailable. A chain
// never becomes critical: BALANCE tolerates chains that cannot be queried.
func chainHealth(chain string, providers []provider.RPCProvider) ComponentHealth {
	h := ComponentHealth{
		Name:      chain,
		Status:    StatusHealthy,
		Providers: make(map[string]provider.HealthStatus, len(providers)),
	}
	if len(providers) == 0 {
		h.Status = StatusDegraded
		h.Error = "no providers configured"
		return h
	}
	for _, p := range providers {
		status := p.Health()
		h.Providers[p.Name()] = status
		if !status.Available {
			h.Status = StatusDegraded
		}
	}
	return h
}
