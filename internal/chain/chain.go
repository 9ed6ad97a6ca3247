// Package chain manages the miner's local view of the blockchain:
// append-only growth, validation of inbound blocks and whole chains,
// and the longer-chain replacement policy.
package chain

import (
	"sync"

	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"github.com/dusknet/dusknet/internal/block"
	"github.com/dusknet/dusknet/internal/txn"
)

var log = logger.WithFields(logger.Fields{"prefix": "chain"})

// Canceller aborts an in-flight mining attempt. Both a newly received
// block and a chain replacement must cancel any attempt building on a
// now-stale tip.
type Canceller interface {
	Cancel()
}

// Chain is the mutex-protected, mutex-ordered (peer-socket -> chain,
// never chain -> mempool) append-only block list plus its cached tip
// hash.
type Chain struct {
	mu         sync.Mutex
	blocks     []block.Block
	tip        string
	difficulty int
	canceller  Canceller
}

// New returns an empty chain at the given difficulty. The genesis
// placeholder hash is used as the tip until the first block lands.
func New(difficulty int) *Chain {
	return &Chain{
		tip:        block.GenesisPreviousHash,
		difficulty: difficulty,
	}
}

// SetCanceller installs the hook invoked whenever an in-flight mining
// attempt must be aborted because the tip moved under it.
func (c *Chain) SetCanceller(cn Canceller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceller = cn
}

// TipHash returns the cached hash of the current tip, or the genesis
// placeholder if the chain is empty.
func (c *Chain) TipHash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip
}

// Len returns the number of blocks on the chain.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

// Snapshot returns a copy of the current chain, oldest block first.
func (c *Chain) Snapshot() []block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]block.Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// ContainsIdentity reports whether any block on the chain already
// contains a transaction with the given identity tuple.
func (c *Chain) ContainsIdentity(id txn.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.blocks {
		if b.ContainsIdentity(id) {
			return true
		}
	}
	return false
}

// AppendMined commits a block this miner itself just finished mining.
// It re-validates that the chain tip has not moved since the attempt
// started (another block may have raced in); on success it appends
// and returns true, otherwise it returns false and changes nothing.
func (c *Chain) AppendMined(b block.Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b.PreviousHash != c.tip {
		return false
	}
	c.blocks = append(c.blocks, b)
	c.tip = b.Hash
	return true
}

// ReceiveResult reports the outcome of ReceiveBlock so callers can
// decide whether to re-flood the payload (only on first-sight
// acceptance).
type ReceiveResult int

const (
	// Accepted means the block was newly appended.
	Accepted ReceiveResult = iota
	// AlreadyKnown means a block with the same hash was already on
	// the chain; this is a duplicate, not an error.
	AlreadyKnown
	// Rejected means the block failed validation or does not extend
	// the local tip.
	Rejected
)

// ReceiveBlock applies the five-step validation and append sequence
// from a peer-sourced block: duplicate check, hash recomputation,
// difficulty check, previous-hash linkage, and finally cancel+append.
// On Accepted, sealedTxs contains the block's transactions so the
// caller can purge them from the mempool.
func (c *Chain) ReceiveBlock(b block.Block) (ReceiveResult, []txn.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.blocks {
		if existing.Hash == b.Hash {
			return AlreadyKnown, nil, nil
		}
	}

	recomputed, err := b.ComputeHash()
	if err != nil {
		return Rejected, nil, errors.Wrap(err, "chain: recompute hash")
	}
	if recomputed != b.Hash {
		log.WithField("hash", b.Hash).Warn("block rejected: hash mismatch")
		return Rejected, nil, errors.New("chain: hash mismatch")
	}

	if !block.MeetsDifficulty(b.Hash, c.difficulty) {
		log.WithField("hash", b.Hash).Warn("block rejected: insufficient difficulty")
		return Rejected, nil, errors.New("chain: insufficient difficulty")
	}

	if b.PreviousHash != c.tip {
		log.WithFields(logger.Fields{
			"expected": c.tip,
			"got":      b.PreviousHash,
		}).Warn("block rejected: fork (previous_hash mismatch)")
		return Rejected, nil, errors.New("chain: previous_hash does not match tip")
	}

	if c.canceller != nil {
		c.canceller.Cancel()
	}

	c.blocks = append(c.blocks, b)
	c.tip = b.Hash

	log.WithFields(logger.Fields{
		"hash":   b.Hash,
		"height": len(c.blocks),
	}).Info("block accepted")

	return Accepted, b.Transactions, nil
}

// Validate checks the full chain invariants from spec.md §3: genesis
// linkage, per-block hash/difficulty validity, and adjacent-pair
// previous_hash continuity.
func Validate(blocks []block.Block, difficulty int) error {
	if len(blocks) == 0 {
		return nil
	}
	if blocks[0].PreviousHash != block.GenesisPreviousHash {
		return errors.New("chain: genesis block has wrong previous_hash")
	}
	for i, b := range blocks {
		if err := b.ValidateStandalone(difficulty); err != nil {
			return errors.Wrapf(err, "chain: block %d invalid", i)
		}
		if i > 0 && b.PreviousHash != blocks[i-1].Hash {
			return errors.Errorf("chain: break in continuity at block %d", i)
		}
	}
	return nil
}

// Replace adopts candidate wholesale if it is strictly longer than
// the local chain and passes full validation. On success it returns
// the transactions that were on the old chain but not the new one (so
// the caller can restore them to the mempool) and cancels any
// in-flight mining attempt.
func (c *Chain) Replace(candidate []block.Block) (replaced bool, restoredFromOld []txn.Transaction, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(candidate) <= len(c.blocks) {
		return false, nil, nil
	}

	if err := Validate(candidate, c.difficulty); err != nil {
		log.WithError(err).Warn("rejected chain replacement: invalid candidate")
		return false, nil, err
	}

	if c.canceller != nil {
		c.canceller.Cancel()
	}

	newIdentities := make(map[txn.Identity]struct{})
	for _, b := range candidate {
		for _, t := range b.Transactions {
			newIdentities[t.ID()] = struct{}{}
		}
	}

	for _, b := range c.blocks {
		for _, t := range b.Transactions {
			if _, stillPresent := newIdentities[t.ID()]; !stillPresent {
				restoredFromOld = append(restoredFromOld, t)
			}
		}
	}

	c.blocks = candidate
	if len(candidate) > 0 {
		c.tip = candidate[len(candidate)-1].Hash
	} else {
		c.tip = block.GenesisPreviousHash
	}

	log.WithField("length", len(candidate)).Info("chain replaced")
	return true, restoredFromOld, nil
}
