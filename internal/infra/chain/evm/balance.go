package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/infra/chain"
	"github.com/vietddude/textchain/internal/infra/rpc/provider"
)

var balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// ErrInvalidAddress is returned for holders that are not 20-byte hex addresses.
var ErrInvalidAddress = errors.New("invalid evm address")

// BalanceAdapter reads the native and stablecoin balance of an address on one
// EVM chain in a single batch round-trip.
type BalanceAdapter struct {
	chain  domain.ChainDescriptor
	client chain.RPCClient
}

func NewBalanceAdapter(descriptor domain.ChainDescriptor, client chain.RPCClient) *BalanceAdapter {
	return &BalanceAdapter{chain: descriptor, client: client}
}

// QueryBalances returns the raw integer balances held by address.
func (a *BalanceAdapter) QueryBalances(ctx context.Context, address string) (domain.ChainBalance, error) {
	if !common.IsHexAddress(address) {
		return domain.ChainBalance{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	holder := common.HexToAddress(address)

	reqs := []provider.BatchRequest{
		{Method: "eth_getBalance", Params: []any{holder.Hex(), "latest"}},
	}
	if sc := a.chain.Stablecoin; sc != nil {
		reqs = append(reqs, provider.BatchRequest{
			Method: "eth_call",
			Params: []any{
				map[string]string{
					"to":   common.HexToAddress(sc.Contract).Hex(),
					"data": BalanceOfCalldata(holder),
				},
				"latest",
			},
		})
	}

	resps, err := a.client.BatchCall(ctx, reqs)
	if err != nil {
		return domain.ChainBalance{}, fmt.Errorf("balance batch: %w", err)
	}
	if len(resps) != len(reqs) {
		return domain.ChainBalance{}, fmt.Errorf("balance batch: expected %d responses, got %d", len(reqs), len(resps))
	}

	native, err := decodeQuantity(resps[0])
	if err != nil {
		return domain.ChainBalance{}, fmt.Errorf("eth_getBalance: %w", err)
	}

	result := domain.ChainBalance{Chain: a.chain, Native: native}
	if len(resps) > 1 {
		stable, err := decodeWord(resps[1])
		if err != nil {
			return domain.ChainBalance{}, fmt.Errorf("balanceOf %s: %w", a.chain.Stablecoin.Symbol, err)
		}
		result.Stable = stable
	}
	return result, nil
}

// BalanceOfCalldata encodes an ERC-20 balanceOf(holder) call.
func BalanceOfCalldata(holder common.Address) string {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(holder.Bytes(), 32)...)
	return hexutil.Encode(data)
}

// decodeQuantity parses a JSON-RPC QUANTITY such as "0x1bc16d674ec80000".
func decodeQuantity(resp provider.BatchResponse) (*big.Int, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	var s string
	if err := json.Unmarshal(resp.Result, &s); err != nil {
		return nil, fmt.Errorf("invalid quantity %s: %w", resp.Result, err)
	}
	v, err := hexutil.DecodeBig(s)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return v, nil
}

// decodeWord parses eth_call return DATA as an unsigned 256-bit integer.
// An empty result ("0x") means no contract code and reads as zero.
func decodeWord(resp provider.BatchResponse) (*big.Int, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	var s string
	if err := json.Unmarshal(resp.Result, &s); err != nil {
		return nil, fmt.Errorf("invalid data %s: %w", resp.Result, err)
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid data %q: %w", s, err)
	}
	if len(raw) > 32 {
		raw = raw[:32]
	}
	return new(big.Int).SetBytes(raw), nil
}
