// Package txn implements the transaction model: the record a wallet
// submits and a miner gossips, mempools and eventually seals into a
// block.
package txn

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Transaction is a single pending or sealed payment. TransactionFees
// is the canonical field name hashed on the wire; wallet RPC accepts
// the "fee" alias and canonicalizes it on ingestion (see UnmarshalJSON).
type Transaction struct {
	Sender           string  `json:"sender"`
	Receiver         string  `json:"receiver"`
	TransactionFees  float64 `json:"transaction_fees"`
	Amount           float64 `json:"amount"`
}

// Identity is the dedup key the network relies on for flood-gossip
// termination. Fee and any timestamp are deliberately excluded.
type Identity struct {
	Sender   string
	Receiver string
	Amount   float64
}

// ID returns this transaction's identity tuple.
func (t Transaction) ID() Identity {
	return Identity{Sender: t.Sender, Receiver: t.Receiver, Amount: t.Amount}
}

// Canonical returns the sorted-key JSON encoding used wherever bytes
// are hashed (block hash input, merkle leaves). Mempool and chain
// dedup compare the identity tuple from ID instead.
func (t Transaction) Canonical() ([]byte, error) {
	// map keys marshal in sorted order in encoding/json, which gives us
	// sort_keys=true equivalence without a custom encoder.
	m := map[string]interface{}{
		"sender":           t.Sender,
		"receiver":         t.Receiver,
		"transaction_fees": t.TransactionFees,
		"amount":           t.Amount,
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "txn: canonical encode")
	}
	return b, nil
}

// wireTransaction mirrors the on-the-wire shapes this system accepts:
// peers always send transaction_fees, wallets may send fee.
type wireTransaction struct {
	Sender          string   `json:"sender"`
	Receiver        string   `json:"receiver"`
	Amount          float64  `json:"amount"`
	TransactionFees *float64 `json:"transaction_fees"`
	Fee             *float64 `json:"fee"`
}

// UnmarshalJSON canonicalizes the fee/transaction_fees alias described
// in spec.md §9: whichever field is present becomes TransactionFees.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Wrap(err, "txn: decode")
	}

	t.Sender = w.Sender
	t.Receiver = w.Receiver
	t.Amount = w.Amount

	switch {
	case w.TransactionFees != nil:
		t.TransactionFees = *w.TransactionFees
	case w.Fee != nil:
		t.TransactionFees = *w.Fee
	default:
		t.TransactionFees = 0
	}
	return nil
}

// LooksLikeTransaction reports whether a raw JSON object has the shape
// of a transaction request, used by the peer protocol to distinguish
// gossiped transactions from other message types.
func LooksLikeTransaction(raw map[string]interface{}) bool {
	_, hasSender := raw["sender"]
	_, hasReceiver := raw["receiver"]
	_, hasAmount := raw["amount"]
	return hasSender && hasReceiver && hasAmount
}
