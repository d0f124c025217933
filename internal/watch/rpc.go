package watch

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// pairCreatedTopic is topic0 of the v2 factory event
// PairCreated(address indexed token0, address indexed token1, address pair, uint256).
var pairCreatedTopic = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))

// rpcRequest is an outbound JSON-RPC 2.0 call.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcEnvelope covers both shapes the node sends back: call responses
// (id + result/error) and subscription notifications (method + params).
type rpcEnvelope struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      uint64              `json:"id"`
	Method  string              `json:"method"`
	Result  json.RawMessage     `json:"result"`
	Error   *rpcError           `json:"error"`
	Params  *subscriptionParams `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// subscriptionParams is the params object of an eth_subscription notification.
type subscriptionParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// logFilter is the second argument to eth_subscribe("logs", ...).
type logFilter struct {
	Address []common.Address `json:"address"`
	Topics  [][]common.Hash  `json:"topics"`
}

// logEntry is one log notification as delivered by the node.
type logEntry struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
	Removed     bool           `json:"removed"`
}
