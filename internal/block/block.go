// Package block implements the Block record, its merkle root and
// hash algorithms, and the validity predicate miners apply to any
// block before appending it to their chain.
package block

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/dusknet/dusknet/internal/txn"
)

// GenesisPreviousHash is the all-zero placeholder used as the
// previous-hash of the first block a chain ever accepts.
var GenesisPreviousHash = strings.Repeat("0", 64)

// Block is a sealed batch of transactions, linked to its predecessor
// by hash and anchored by a proof-of-work nonce.
type Block struct {
	Transactions []txn.Transaction `json:"transactions"`
	Timestamp    float64           `json:"timestamp"`
	PreviousHash string            `json:"previous_hash"`
	MerkleRoot   string            `json:"merkle_root"`
	Nonce        int64             `json:"nonce"`
	Hash         string            `json:"hash"`
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// BuildMerkleRoot hashes each transaction's canonical JSON, then
// pairwise concatenates hex digests and hashes again layer by layer.
// An odd element at any layer is duplicated. An empty list yields "".
func BuildMerkleRoot(txs []txn.Transaction) (string, error) {
	if len(txs) == 0 {
		return "", nil
	}

	layer := make([]string, len(txs))
	for i, t := range txs {
		canon, err := t.Canonical()
		if err != nil {
			return "", errors.Wrap(err, "block: merkle leaf")
		}
		layer[i] = sha256Hex(canon)
	}

	for len(layer) > 1 {
		next := make([]string, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, sha256Hex([]byte(left+right)))
		}
		layer = next
	}

	return layer[0], nil
}

// canonicalTransactions re-decodes each transaction's own sorted-key
// encoding into a generic map, so that when the whole payload below is
// marshaled, the nested transaction objects carry sorted keys too
// instead of encoding/json's default struct-tag order.
func canonicalTransactions(txs []txn.Transaction) ([]interface{}, error) {
	out := make([]interface{}, len(txs))
	for i, t := range txs {
		canon, err := t.Canonical()
		if err != nil {
			return nil, err
		}
		var m map[string]interface{}
		if err := json.Unmarshal(canon, &m); err != nil {
			return nil, errors.Wrap(err, "block: decode canonical transaction")
		}
		out[i] = m
	}
	return out, nil
}

// ComputeHash recomputes the SHA-256 over the block's canonical JSON
// payload (sorted keys throughout, including nested transactions,
// excluding Hash itself).
func (b Block) ComputeHash() (string, error) {
	txs, err := canonicalTransactions(b.Transactions)
	if err != nil {
		return "", err
	}

	m := map[string]interface{}{
		"transactions":  txs,
		"timestamp":     b.Timestamp,
		"previous_hash": b.PreviousHash,
		"merkle_root":   b.MerkleRoot,
		"nonce":         b.Nonce,
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "block: canonical encode")
	}
	return sha256Hex(raw), nil
}

// MeetsDifficulty reports whether hash has at least difficulty
// leading hex zero characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

// New builds a candidate block ready for proof-of-work search: nonce
// zero, merkle root computed, hash computed for nonce zero.
func New(txs []txn.Transaction, previousHash string, timestamp float64) (Block, error) {
	root, err := BuildMerkleRoot(txs)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Transactions: txs,
		Timestamp:    timestamp,
		PreviousHash: previousHash,
		MerkleRoot:   root,
		Nonce:        0,
	}

	h, err := b.ComputeHash()
	if err != nil {
		return Block{}, err
	}
	b.Hash = h
	return b, nil
}

// ValidateStandalone checks the hash/difficulty invariants that do
// not depend on any particular chain tip: recomputed hash matches the
// stated hash, and the hash satisfies the difficulty predicate.
func (b Block) ValidateStandalone(difficulty int) error {
	recomputed, err := b.ComputeHash()
	if err != nil {
		return err
	}
	if recomputed != b.Hash {
		return errors.New("block: hash mismatch")
	}
	if !MeetsDifficulty(b.Hash, difficulty) {
		return errors.New("block: insufficient proof of work")
	}
	return nil
}

// ContainsIdentity reports whether any transaction in the block has
// the given identity tuple.
func (b Block) ContainsIdentity(id txn.Identity) bool {
	for _, t := range b.Transactions {
		if t.ID() == id {
			return true
		}
	}
	return false
}
