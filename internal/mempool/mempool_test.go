package mempool

import (
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/dusknet/dusknet/internal/txn"
)

func tx(sender, receiver string, amount, fee float64) txn.Transaction {
	return txn.Transaction{Sender: sender, Receiver: receiver, Amount: amount, TransactionFees: fee}
}

func TestInsertRejectsDuplicateIdentity(t *testing.T) {
	assert := assert.New(t)

	p := New(nil)
	assert.True(p.Insert(tx("a", "b", 10, 0.1)))
	assert.False(p.Insert(tx("a", "b", 10, 0.9)))
	assert.Equal(1, p.Len())
}

func TestInsertRejectsChainMember(t *testing.T) {
	assert := assert.New(t)

	sealed := tx("a", "b", 10, 0.1).ID()
	p := New(func(id txn.Identity) bool { return id == sealed })

	assert.False(p.Insert(tx("a", "b", 10, 0.1)))
	assert.Equal(0, p.Len())
}

func TestPopTopOrdersByFeeThenAge(t *testing.T) {
	assert := assert.New(t)

	p := New(nil)
	p.Insert(tx("a", "b", 1, 0.1))
	p.Insert(tx("c", "d", 1, 0.5))
	p.Insert(tx("e", "f", 1, 0.5))
	p.Insert(tx("g", "h", 1, 0.2))

	top := p.PopTop(2)
	assert.Len(top, 2)
	assert.Equal(0.5, top[0].TransactionFees)
	assert.Equal("c", top[0].Sender)
	assert.Equal(0.5, top[1].TransactionFees)
	assert.Equal("e", top[1].Sender)
}

func TestPopTopCapsAtAvailable(t *testing.T) {
	assert := assert.New(t)

	p := New(nil)
	p.Insert(tx("a", "b", 1, 0.1))

	assert.Len(p.PopTop(5), 1)
	assert.Equal(0, p.Len())
}

func TestReturnSkipsChainMembers(t *testing.T) {
	assert := assert.New(t)

	sealed := tx("a", "b", 10, 0.1)
	p := New(func(id txn.Identity) bool { return id == sealed.ID() })

	p.Return([]txn.Transaction{sealed, tx("c", "d", 1, 0.1)})
	assert.Equal(1, p.Len())
}

func TestRemovePresentIn(t *testing.T) {
	assert := assert.New(t)

	p := New(nil)
	a := tx("a", "b", 1, 0.1)
	c := tx("c", "d", 1, 0.2)
	p.Insert(a)
	p.Insert(c)

	p.RemovePresentIn([]txn.Transaction{a})
	assert.Equal(1, p.Len())
	assert.Equal([]txn.Transaction{c}, p.SnapshotSorted())
}

func TestSnapshotSortedNonDestructive(t *testing.T) {
	assert := assert.New(t)

	p := New(nil)
	p.Insert(tx("a", "b", 1, 0.5))
	p.Insert(tx("c", "d", 1, 0.1))

	snap := p.SnapshotSorted()
	assert.Len(snap, 2)
	assert.Equal(2, p.Len())
	assert.Equal(0.5, snap[0].TransactionFees)
}
