// Package chain holds the boundary between the balance aggregator and
// chain-specific RPC logic.
package chain

import (
	"context"
	"encoding/json"

	"github.com/vietddude/textchain/internal/infra/rpc/provider"
)

// RPCClient is the transport a chain adapter reads through.
// routing.Failover and provider.HTTPProvider both satisfy it.
type RPCClient interface {
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)
	BatchCall(ctx context.Context, requests []provider.BatchRequest) ([]provider.BatchResponse, error)
}
