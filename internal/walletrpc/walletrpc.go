// Package walletrpc implements the wallet-facing request/response
// protocol: submitting transactions and reading balances, the chain,
// and the mempool.
package walletrpc

import (
	"encoding/json"

	"github.com/dusknet/dusknet/internal/block"
	"github.com/dusknet/dusknet/internal/txn"
)

// Node is the subset of miner state and behavior the wallet protocol
// needs. internal/peer's Node implements this.
type Node interface {
	InsertTransaction(tx txn.Transaction) bool
	BroadcastRaw(line string)
	Balance(wallet string) float64
	ChainSnapshot() []block.Block
	MempoolSnapshot() []txn.Transaction
}

type requestEnvelope struct {
	Type   string `json:"type"`
	Wallet string `json:"wallet"`
}

type transactionReceivedResponse struct {
	Status string `json:"status"`
}

type balanceResponse struct {
	Status  string  `json:"status"`
	Balance float64 `json:"balance"`
}

type blockchainResponse struct {
	Status     string         `json:"status"`
	Blockchain []block.Block  `json:"blockchain"`
}

type mempoolResponse struct {
	Status  string            `json:"status"`
	Mempool []txn.Transaction `json:"mempool"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Handle dispatches one raw wallet request line against node and
// returns the JSON-encodable response value.
func Handle(raw string, node Node) interface{} {
	var env requestEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return errorResponse{Status: "error", Message: "Invalid JSON"}
	}

	switch env.Type {
	case "TRANSACTION":
		var tx txn.Transaction
		if err := json.Unmarshal([]byte(raw), &tx); err != nil {
			return errorResponse{Status: "error", Message: "Invalid JSON"}
		}
		node.InsertTransaction(tx)
		node.BroadcastRaw(raw)
		return transactionReceivedResponse{Status: "transaction_received"}

	case "GET_BALANCE":
		return balanceResponse{Status: "success", Balance: node.Balance(env.Wallet)}

	case "GET_BLOCKCHAIN":
		return blockchainResponse{Status: "success", Blockchain: node.ChainSnapshot()}

	case "GET_MEMPOOL":
		return mempoolResponse{Status: "success", Mempool: node.MempoolSnapshot()}

	default:
		return errorResponse{Status: "error", Message: "Unknown request"}
	}
}

// Balance computes a wallet's balance deterministically from the
// chain (in block order, oldest first) and then the mempool, matching
// spec.md §4.3: sends debit, receives credit, mempool included so a
// not-yet-mined send is reflected immediately.
func Balance(wallet string, chain []block.Block, mempool []txn.Transaction) float64 {
	var balance float64
	for _, b := range chain {
		for _, t := range b.Transactions {
			applyTransfer(&balance, wallet, t)
		}
	}
	for _, t := range mempool {
		applyTransfer(&balance, wallet, t)
	}
	return balance
}

func applyTransfer(balance *float64, wallet string, t txn.Transaction) {
	if t.Sender == wallet {
		*balance -= t.Amount
	}
	if t.Receiver == wallet {
		*balance += t.Amount
	}
}
