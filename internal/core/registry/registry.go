// Package registry holds the immutable set of chains the gateway supports.
package registry

import (
	"strings"

	"github.com/vietddude/textchain/internal/core/config"
	"github.com/vietddude/textchain/internal/core/domain"
)

// Registry resolves user-typed aliases to chain descriptors.
// It is built once at startup and is safe for concurrent reads.
type Registry struct {
	chains  []domain.ChainDescriptor
	byAlias map[string]int
}

// New builds a registry from descriptors, preserving their order.
func New(chains []domain.ChainDescriptor) *Registry {
	r := &Registry{
		chains:  make([]domain.ChainDescriptor, len(chains)),
		byAlias: make(map[string]int),
	}
	for i, c := range chains {
		c.Aliases = append([]string(nil), c.Aliases...)
		if c.Stablecoin != nil {
			sc := *c.Stablecoin
			c.Stablecoin = &sc
		}
		r.chains[i] = c

		r.index(string(c.Key), i)
		for _, alias := range c.Aliases {
			r.index(alias, i)
		}
	}
	return r
}

// FromConfig builds a registry from the chain section of the config.
func FromConfig(chains []config.ChainConfig) *Registry {
	descriptors := make([]domain.ChainDescriptor, 0, len(chains))
	for _, c := range chains {
		d := domain.ChainDescriptor{
			Key:            domain.ChainKey(c.Key),
			Name:           c.Name,
			ChainID:        c.ChainID,
			NativeSymbol:   c.NativeSymbol,
			NativeDecimals: c.NativeDecimals,
			Aliases:        c.Aliases,
		}
		if d.Name == "" {
			d.Name = c.Key
		}
		if c.Stablecoin != nil && c.Stablecoin.Contract != "" {
			d.Stablecoin = &domain.Stablecoin{
				Symbol:   c.Stablecoin.Symbol,
				Contract: c.Stablecoin.Contract,
				Decimals: c.Stablecoin.Decimals,
			}
		}
		descriptors = append(descriptors, d)
	}
	return New(descriptors)
}

func (r *Registry) index(alias string, i int) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		return
	}
	// first declaration wins
	if _, ok := r.byAlias[alias]; !ok {
		r.byAlias[alias] = i
	}
}

// Resolve looks up a chain by exact, case-insensitive alias.
func (r *Registry) Resolve(alias string) (domain.ChainDescriptor, bool) {
	i, ok := r.byAlias[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return domain.ChainDescriptor{}, false
	}
	return r.chains[i], true
}

// List returns all chains in canonical order.
func (r *Registry) List() []domain.ChainDescriptor {
	out := make([]domain.ChainDescriptor, len(r.chains))
	copy(out, r.chains)
	return out
}

// Aliases returns the primary alias of every chain in order.
func (r *Registry) Aliases() []string {
	keys := make([]string, len(r.chains))
	for i, c := range r.chains {
		keys[i] = string(c.Key)
	}
	return keys
}

// Len returns the number of registered chains.
func (r *Registry) Len() int {
	return len(r.chains)
}
