// Package mining drives the cancellable proof-of-work search: a
// background trigger loop that launches at most one mining attempt at
// a time once the mempool holds enough transactions, commits the
// result if the chain tip has not moved, and otherwise returns the
// selected transactions to the mempool.
package mining

import (
	"context"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/dusknet/dusknet/internal/block"
	"github.com/dusknet/dusknet/internal/chain"
	"github.com/dusknet/dusknet/internal/mempool"
	"github.com/dusknet/dusknet/internal/txn"
)

var log = logger.WithFields(logger.Fields{"prefix": "mining"})

// cancelCheckInterval is how often the nonce search polls the cancel
// flag, per spec.md §4.5 ("at least every 100 iterations").
const cancelCheckInterval = 100

// triggerPeriod is how often the background loop checks whether a new
// attempt should start.
const triggerPeriod = 2 * time.Second

// Broadcaster sends a freshly mined block to every connected peer.
type Broadcaster interface {
	BroadcastBlock(b block.Block)
}

// Miner runs the background mining trigger and the cancellable PoW
// search for one node. It implements chain.Canceller so the chain
// package can abort an in-flight attempt when a peer block or chain
// replacement makes it stale.
type Miner struct {
	chain      *chain.Chain
	pool       *mempool.Pool
	broadcast  Broadcaster
	difficulty int
	blockSize  int

	inProgress int32 // atomic: 1 while an attempt is selecting/searching
	cancelled  int32 // atomic: 1 once Cancel has been called for the current attempt
	attempts   int64 // atomic: lifetime count of attempts started, for tests
}

// New returns a Miner ready to Run. blockSize is K, the number of
// transactions per block; difficulty is the number of required
// leading hex zeros.
func New(c *chain.Chain, p *mempool.Pool, broadcast Broadcaster, blockSize, difficulty int) *Miner {
	return &Miner{
		chain:      c,
		pool:       p,
		broadcast:  broadcast,
		difficulty: difficulty,
		blockSize:  blockSize,
	}
}

// Cancel aborts the mining attempt currently in flight, if any. It is
// safe to call with no attempt running.
func (m *Miner) Cancel() {
	atomic.StoreInt32(&m.cancelled, 1)
}

// InProgress reports whether an attempt is currently selecting or
// searching. Exposed for tests asserting at most one attempt at a
// time (testable property 4).
func (m *Miner) InProgress() bool {
	return atomic.LoadInt32(&m.inProgress) == 1
}

// AttemptsStarted returns the lifetime count of mining attempts
// started, for tests.
func (m *Miner) AttemptsStarted() int64 {
	return atomic.LoadInt64(&m.attempts)
}

// Run starts the periodic trigger loop; it returns when ctx is
// cancelled.
func (m *Miner) Run(ctx context.Context) {
	ticker := time.NewTicker(triggerPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.pool.Len() >= m.blockSize && !m.InProgress() {
				go m.attempt()
			}
		}
	}
}

// attempt runs one full SELECTED -> SEARCHING -> COMMITTED|ABORTED
// cycle. Only one attempt may run at a time per Miner, enforced by
// inProgress.
func (m *Miner) attempt() {
	if !atomic.CompareAndSwapInt32(&m.inProgress, 0, 1) {
		return
	}
	atomic.AddInt64(&m.attempts, 1)
	atomic.StoreInt32(&m.cancelled, 0)
	defer atomic.StoreInt32(&m.inProgress, 0)

	selected := m.pool.PopTop(m.blockSize)
	if len(selected) < m.blockSize {
		// Mempool shrank between the trigger check and the pop (a
		// peer block may have sealed some of these); give them back
		// and bail out of this attempt.
		m.pool.Return(selected)
		return
	}

	previousHash := m.chain.TipHash()
	candidate, err := block.New(selected, previousHash, float64(time.Now().UnixNano())/1e9)
	if err != nil {
		log.WithError(err).Error("failed to build candidate block")
		m.returnExcludingChain(selected)
		return
	}

	log.WithField("count", len(selected)).Info("mining attempt started")

	found := m.search(&candidate)
	if !found {
		log.Info("mining attempt cancelled")
		m.returnExcludingChain(selected)
		return
	}

	if !m.chain.AppendMined(candidate) {
		log.Warn("chain changed during mining, discarding candidate")
		m.returnExcludingChain(selected)
		return
	}

	log.WithField("hash", candidate.Hash).Info("block mined and appended")
	if m.broadcast != nil {
		m.broadcast.BroadcastBlock(candidate)
	}
}

// search increments nonce and recomputes hash until the difficulty
// predicate holds or cancellation is observed. It never touches the
// chain lock.
func (m *Miner) search(b *block.Block) bool {
	for {
		hash, err := b.ComputeHash()
		if err != nil {
			log.WithError(err).Error("hash computation failed during search")
			return false
		}
		b.Hash = hash

		if block.MeetsDifficulty(b.Hash, m.difficulty) {
			return true
		}

		b.Nonce++
		if b.Nonce%cancelCheckInterval == 0 && atomic.LoadInt32(&m.cancelled) == 1 {
			return false
		}
	}
}

// returnExcludingChain reinserts txs into the mempool, skipping any
// that are now present in the chain (they were sealed by a
// concurrently accepted block).
func (m *Miner) returnExcludingChain(txs []txn.Transaction) {
	keep := make([]txn.Transaction, 0, len(txs))
	for _, t := range txs {
		if !m.chain.ContainsIdentity(t.ID()) {
			keep = append(keep, t)
		}
	}
	m.pool.Return(keep)
}
