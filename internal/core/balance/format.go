package balance

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vietddude/textchain/internal/core/domain"
)

const (
	nativeDisplayPlaces = 4
	stableDisplayPlaces = 2
)

// FormatUnits renders a raw integer amount with the given number of decimals,
// truncated to places fractional digits.
func FormatUnits(v *big.Int, decimals int32, places int32) string {
	if v == nil {
		v = new(big.Int)
	}
	return decimal.NewFromBigInt(v, -decimals).Truncate(places).StringFixed(places)
}

// FormatLine renders one chain for an SMS reply, e.g.
// "Polygon Amoy: 0.5000 MATIC, 10.00 USDC". Zero legs are omitted.
func FormatLine(b domain.ChainBalance) string {
	var parts []string
	if b.Native != nil && b.Native.Sign() != 0 {
		parts = append(parts, FormatUnits(b.Native, b.Chain.NativeDecimals, nativeDisplayPlaces)+" "+b.Chain.NativeSymbol)
	}
	if sc := b.Chain.Stablecoin; sc != nil && b.Stable != nil && b.Stable.Sign() != 0 {
		parts = append(parts, FormatUnits(b.Stable, sc.Decimals, stableDisplayPlaces)+" "+sc.Symbol)
	}
	if len(parts) == 0 {
		parts = append(parts, FormatUnits(nil, 0, nativeDisplayPlaces)+" "+b.Chain.NativeSymbol)
	}
	return b.Chain.Name + ": " + strings.Join(parts, ", ")
}
