// Package mempool implements the per-miner pool of pending
// transactions: a fee-ordered indexed priority queue that also
// supports removing an arbitrary, already-known subset (the
// transactions a just-accepted block sealed).
package mempool

import (
	"container/heap"
	"sync"

	"github.com/dusknet/dusknet/internal/txn"
)

// entry is one queued transaction plus the insertion sequence used to
// break fee ties deterministically (oldest first).
type entry struct {
	tx  txn.Transaction
	seq uint64
}

// priorityQueue orders entries by fee descending, then by insertion
// order ascending, and satisfies container/heap.Interface as a max-
// heap over fee.
type priorityQueue []*entry

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].tx.TransactionFees != q[j].tx.TransactionFees {
		return q[i].tx.TransactionFees > q[j].tx.TransactionFees
	}
	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x interface{}) {
	*q = append(*q, x.(*entry))
}

func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Pool is the mempool proper: insertion with dedup, bulk top-K
// extraction, bulk removal of sealed transactions, and a sorted
// snapshot. All operations are serialized by a single mutex.
type Pool struct {
	mu       sync.Mutex
	queue    priorityQueue
	byID     map[txn.Identity]*entry
	nextSeq  uint64
	inChain  func(txn.Identity) bool
}

// New returns an empty pool. inChain is consulted on every insertion
// to reject transactions already sealed into the chain; it may be nil
// if no such check is available yet.
func New(inChain func(txn.Identity) bool) *Pool {
	return &Pool{
		byID:    make(map[txn.Identity]*entry),
		inChain: inChain,
	}
}

// SetChainChecker installs (or replaces) the chain-membership
// predicate used during Insert.
func (p *Pool) SetChainChecker(inChain func(txn.Identity) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inChain = inChain
}

// Insert adds tx unless its identity tuple duplicates an existing
// mempool entry or a transaction already on the chain. Returns true
// if the transaction was newly inserted.
func (p *Pool) Insert(tx txn.Transaction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := tx.ID()
	if _, exists := p.byID[id]; exists {
		return false
	}
	if p.inChain != nil && p.inChain(id) {
		return false
	}

	e := &entry{tx: tx, seq: p.nextSeq}
	p.nextSeq++
	p.byID[id] = e
	heap.Push(&p.queue, e)
	return true
}

// Len reports the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// PopTop removes and returns up to n highest-fee entries, highest fee
// first.
func (p *Pool) PopTop(n int) []txn.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > len(p.queue) {
		n = len(p.queue)
	}
	out := make([]txn.Transaction, 0, n)
	for i := 0; i < n; i++ {
		e := heap.Pop(&p.queue).(*entry)
		delete(p.byID, e.tx.ID())
		out = append(out, e.tx)
	}
	return out
}

// Return reinserts transactions that were popped for a mining attempt
// that was aborted or superseded, skipping any that are now present
// on the chain (per inChain) to avoid resurrecting sealed payments.
func (p *Pool) Return(txs []txn.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tx := range txs {
		id := tx.ID()
		if _, exists := p.byID[id]; exists {
			continue
		}
		if p.inChain != nil && p.inChain(id) {
			continue
		}
		e := &entry{tx: tx, seq: p.nextSeq}
		p.nextSeq++
		p.byID[id] = e
		heap.Push(&p.queue, e)
	}
}

// RemovePresentIn drops every mempool entry whose identity tuple
// matches a transaction in txs (typically: transactions sealed into a
// just-accepted block, or now present on a newly adopted chain).
func (p *Pool) RemovePresentIn(txs []txn.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	present := make(map[txn.Identity]struct{}, len(txs))
	for _, t := range txs {
		present[t.ID()] = struct{}{}
	}
	if len(present) == 0 {
		return
	}

	rebuilt := make(priorityQueue, 0, len(p.queue))
	for _, e := range p.queue {
		if _, drop := present[e.tx.ID()]; drop {
			delete(p.byID, e.tx.ID())
			continue
		}
		rebuilt = append(rebuilt, e)
	}
	heap.Init(&rebuilt)
	p.queue = rebuilt
}

// SnapshotSorted returns a non-destructive, fee-descending copy of
// the current pool contents.
func (p *Pool) SnapshotSorted() []txn.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make(priorityQueue, len(p.queue))
	copy(cp, p.queue)
	heap.Init(&cp)

	out := make([]txn.Transaction, 0, len(cp))
	for cp.Len() > 0 {
		e := heap.Pop(&cp).(*entry)
		out = append(out, e.tx)
	}
	return out
}
