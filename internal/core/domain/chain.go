package domain

import (
	"math/big"
)

// ChainKey is the canonical identifier of a supported network (e.g. "polygon").
type ChainKey string

// Stablecoin describes the ERC-20 stablecoin tracked on a chain.
type Stablecoin struct {
	Symbol   string
	Contract string
	Decimals int32
}

// ChainDescriptor maps user-facing aliases to a supported network.
type ChainDescriptor struct {
	Key            ChainKey
	Name           string
	ChainID        uint64
	NativeSymbol   string
	NativeDecimals int32
	Aliases        []string

	// Stablecoin is nil when the chain has no tracked stablecoin.
	Stablecoin *Stablecoin
}

// ChainBalance is the outcome of one per-chain balance query.
// Amounts are in the smallest unit of the asset (wei, 1e-6 USDC, ...).
type ChainBalance struct {
	Chain  ChainDescriptor
	Native *big.Int

	// Stable is nil when the chain has no stablecoin.
	Stable *big.Int
	Err    error
}

// IsZero reports whether both the native and stablecoin amounts are zero.
func (b ChainBalance) IsZero() bool {
	if b.Native != nil && b.Native.Sign() != 0 {
		return false
	}
	if b.Stable != nil && b.Stable.Sign() != 0 {
		return false
	}
	return true
}

// AggregatedBalance holds the non-zero balances of an address in registry order.
type AggregatedBalance struct {
	Address string
	Entries []ChainBalance
}

// Empty reports whether no chain carries funds.
func (a AggregatedBalance) Empty() bool {
	return len(a.Entries) == 0
}
