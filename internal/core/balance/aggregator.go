// Package balance fans a balance lookup out to every registered chain and
// merges the answers in registry order.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/metrics"
)

// ErrNoProvider is recorded for a chain that has no balance provider wired.
var ErrNoProvider = errors.New("no balance provider configured")

// Provider reads the balances of one address on one chain.
type Provider interface {
	QueryBalances(ctx context.Context, address string) (domain.ChainBalance, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, address string) (domain.ChainBalance, error)

func (f ProviderFunc) QueryBalances(ctx context.Context, address string) (domain.ChainBalance, error) {
	return f(ctx, address)
}

// ChainLister supplies the canonical chain order. *registry.Registry implements it.
type ChainLister interface {
	List() []domain.ChainDescriptor
}

// Aggregator queries all chains concurrently. It is safe for concurrent use.
type Aggregator struct {
	chains    ChainLister
	providers map[domain.ChainKey]Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout bounds a whole aggregation. Chains still pending when it fires
// count as failed.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

func NewAggregator(chains ChainLister, providers map[domain.ChainKey]Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		chains:    chains,
		providers: providers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Collect queries every chain and returns one result per registered chain,
// positionally aligned with the registry order. Failed chains carry Err.
func (a *Aggregator) Collect(ctx context.Context, address string) []domain.ChainBalance {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	chains := a.chains.List()
	results := make([]domain.ChainBalance, len(chains))

	// Plain Group: one chain failing must not cancel the others.
	var g errgroup.Group
	for i, c := range chains {
		g.Go(func() error {
			results[i] = a.query(ctx, c, address)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Aggregate returns the chains holding a non-zero native or stablecoin
// balance, in registry order. Failed chains are logged and left out.
// An empty result means no funds.
func (a *Aggregator) Aggregate(ctx context.Context, address string) domain.AggregatedBalance {
	out := domain.AggregatedBalance{Address: address}

	for _, r := range a.Collect(ctx, address) {
		key := string(r.Chain.Key)
		switch {
		case r.Err != nil:
			metrics.ChainQueries.WithLabelValues(key, "error").Inc()
			a.logger.Warn("Balance check failed", "chain", key, "error", r.Err)
		case r.IsZero():
			metrics.ChainQueries.WithLabelValues(key, "zero").Inc()
		default:
			metrics.ChainQueries.WithLabelValues(key, "ok").Inc()
			out.Entries = append(out.Entries, r)
		}
	}
	return out
}

func (a *Aggregator) query(ctx context.Context, c domain.ChainDescriptor, address string) (res domain.ChainBalance) {
	res.Chain = c

	p, ok := a.providers[c.Key]
	if !ok || p == nil {
		res.Err = ErrNoProvider
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res = domain.ChainBalance{Chain: c, Err: fmt.Errorf("provider panic: %v", r)}
		}
	}()

	got, err := p.QueryBalances(ctx, address)
	if err != nil {
		res.Err = err
		return res
	}
	if got.Native == nil {
		res.Err = errors.New("provider returned no native balance")
		return res
	}

	res.Native = got.Native
	res.Stable = got.Stable
	if c.Stablecoin == nil {
		res.Stable = nil
	}
	return res
}
