package evm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/infra/rpc/provider"
)

const holder = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// MockRPCClient records the last batch and answers with canned results.
type MockRPCClient struct {
	results []provider.BatchResponse
	err     error
	last    []provider.BatchRequest
}

func (m *MockRPCClient) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	return nil, errors.New("not used")
}

func (m *MockRPCClient) BatchCall(ctx context.Context, reqs []provider.BatchRequest) ([]provider.BatchResponse, error) {
	m.last = reqs
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func raw(s string) json.RawMessage {
	return json.RawMessage(`"` + s + `"`)
}

func polygon() domain.ChainDescriptor {
	return domain.ChainDescriptor{
		Key:            "polygon",
		Name:           "Polygon Amoy",
		ChainID:        80002,
		NativeSymbol:   "MATIC",
		NativeDecimals: 18,
		Stablecoin: &domain.Stablecoin{
			Symbol:   "USDC",
			Contract: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
			Decimals: 6,
		},
	}
}

func TestBalanceOfCalldata(t *testing.T) {
	got := BalanceOfCalldata(common.HexToAddress(holder))
	want := "0x70a08231000000000000000000000000f39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	if got != want {
		t.Errorf("calldata = %s, want %s", got, want)
	}
}

func TestQueryBalances_NativeAndStable(t *testing.T) {
	client := &MockRPCClient{results: []provider.BatchResponse{
		{Result: raw("0xde0b6b3a7640000")}, // 1e18
		{Result: raw("0x0000000000000000000000000000000000000000000000000000000000989680")},
	}}
	a := NewBalanceAdapter(polygon(), client)

	bal, err := a.QueryBalances(context.Background(), holder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Native.String() != "1000000000000000000" {
		t.Errorf("native = %s", bal.Native)
	}
	if bal.Stable.String() != "10000000" {
		t.Errorf("stable = %s", bal.Stable)
	}
	if len(client.last) != 2 || client.last[1].Method != "eth_call" {
		t.Fatalf("unexpected batch %+v", client.last)
	}
	call := client.last[1].Params[0].(map[string]string)
	if !strings.HasPrefix(call["data"], "0x70a08231") {
		t.Errorf("unexpected calldata %s", call["data"])
	}
}

func TestQueryBalances_NoStablecoin(t *testing.T) {
	desc := polygon()
	desc.Stablecoin = nil
	client := &MockRPCClient{results: []provider.BatchResponse{{Result: raw("0x0")}}}

	bal, err := NewBalanceAdapter(desc, client).QueryBalances(context.Background(), holder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Stable != nil {
		t.Errorf("expected nil stable, got %s", bal.Stable)
	}
	if bal.Native.Sign() != 0 {
		t.Errorf("expected zero native, got %s", bal.Native)
	}
	if len(client.last) != 1 {
		t.Errorf("expected single request, got %d", len(client.last))
	}
}

func TestQueryBalances_EmptyCallResultIsZero(t *testing.T) {
	client := &MockRPCClient{results: []provider.BatchResponse{
		{Result: raw("0x1")},
		{Result: raw("0x")},
	}}

	bal, err := NewBalanceAdapter(polygon(), client).QueryBalances(context.Background(), holder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Stable.Sign() != 0 {
		t.Errorf("expected zero stable, got %s", bal.Stable)
	}
}

func TestQueryBalances_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *MockRPCClient
	}{
		{"transport", &MockRPCClient{err: errors.New("all providers failed")}},
		{"rpc error", &MockRPCClient{results: []provider.BatchResponse{
			{Error: &provider.RPCError{Code: -32000, Message: "header not found"}},
			{Result: raw("0x")},
		}}},
		{"malformed quantity", &MockRPCClient{results: []provider.BatchResponse{
			{Result: raw("not-hex")},
			{Result: raw("0x")},
		}}},
		{"short batch", &MockRPCClient{results: []provider.BatchResponse{{Result: raw("0x1")}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBalanceAdapter(polygon(), tt.client).QueryBalances(context.Background(), holder); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestQueryBalances_InvalidAddress(t *testing.T) {
	_, err := NewBalanceAdapter(polygon(), &MockRPCClient{}).QueryBalances(context.Background(), "+15551234")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}
