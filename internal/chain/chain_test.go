package chain

import (
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/dusknet/dusknet/internal/block"
	"github.com/dusknet/dusknet/internal/txn"
)

type mockCanceller struct{ calls int }

func (m *mockCanceller) Cancel() { m.calls++ }

func mineBlock(t *testing.T, txs []txn.Transaction, previousHash string, difficulty int) block.Block {
	t.Helper()
	b, err := block.New(txs, previousHash, 1700000000.0)
	assert.NoError(t, err)
	for !block.MeetsDifficulty(b.Hash, difficulty) {
		b.Nonce++
		h, err := b.ComputeHash()
		assert.NoError(t, err)
		b.Hash = h
	}
	return b
}

func TestAppendMinedRejectsStaleTip(t *testing.T) {
	assert := assert.New(t)

	c := New(0)
	b := mineBlock(t, nil, "not-the-tip", 0)
	assert.False(c.AppendMined(b))
	assert.Equal(0, c.Len())
}

func TestAppendMinedAccepts(t *testing.T) {
	assert := assert.New(t)

	c := New(0)
	b := mineBlock(t, nil, c.TipHash(), 0)
	assert.True(c.AppendMined(b))
	assert.Equal(1, c.Len())
	assert.Equal(b.Hash, c.TipHash())
}

func TestReceiveBlockDuplicateIsAlreadyKnown(t *testing.T) {
	assert := assert.New(t)

	c := New(0)
	b := mineBlock(t, nil, c.TipHash(), 0)
	assert.True(c.AppendMined(b))

	result, _, err := c.ReceiveBlock(b)
	assert.NoError(err)
	assert.Equal(AlreadyKnown, result)
	assert.Equal(1, c.Len())
}

func TestReceiveBlockRejectsHashMismatch(t *testing.T) {
	assert := assert.New(t)

	c := New(0)
	b := mineBlock(t, nil, c.TipHash(), 0)
	b.Hash = "0000000000000000000000000000000000000000000000000000000000bad"

	result, _, err := c.ReceiveBlock(b)
	assert.Equal(Rejected, result)
	assert.Error(err)
}

func TestReceiveBlockRejectsInsufficientDifficulty(t *testing.T) {
	assert := assert.New(t)

	c := New(4)
	b := mineBlock(t, nil, c.TipHash(), 0)

	result, _, err := c.ReceiveBlock(b)
	assert.Equal(Rejected, result)
	assert.Error(err)
}

func TestReceiveBlockRejectsForkMismatch(t *testing.T) {
	assert := assert.New(t)

	c := New(0)
	b := mineBlock(t, nil, "deadbeef", 0)

	result, _, err := c.ReceiveBlock(b)
	assert.Equal(Rejected, result)
	assert.Error(err)
}

func TestReceiveBlockCancelsInFlightMining(t *testing.T) {
	assert := assert.New(t)

	c := New(0)
	m := &mockCanceller{}
	c.SetCanceller(m)

	b := mineBlock(t, nil, c.TipHash(), 0)
	result, sealed, err := c.ReceiveBlock(b)
	assert.NoError(err)
	assert.Equal(Accepted, result)
	assert.Equal(1, m.calls)
	assert.Equal(b.Transactions, sealed)
}

func TestValidateChecksGenesisLinkage(t *testing.T) {
	assert := assert.New(t)

	b := mineBlock(t, nil, "not-genesis", 0)
	assert.Error(Validate([]block.Block{b}, 0))
}

func TestValidateChecksContinuity(t *testing.T) {
	assert := assert.New(t)

	b1 := mineBlock(t, nil, block.GenesisPreviousHash, 0)
	b2 := mineBlock(t, nil, "wrong-previous", 0)
	assert.Error(Validate([]block.Block{b1, b2}, 0))
}

func TestReplaceRequiresStrictlyLonger(t *testing.T) {
	assert := assert.New(t)

	c := New(0)
	b := mineBlock(t, nil, c.TipHash(), 0)
	assert.True(c.AppendMined(b))

	replaced, _, err := c.Replace([]block.Block{b})
	assert.NoError(err)
	assert.False(replaced)
}

func TestReplaceAdoptsLongerValidChainAndRestoresDroppedTxs(t *testing.T) {
	assert := assert.New(t)

	c := New(0)
	oldTx := txn.Transaction{Sender: "a", Receiver: "b", Amount: 1}
	old := mineBlock(t, []txn.Transaction{oldTx}, c.TipHash(), 0)
	assert.True(c.AppendMined(old))

	nb1 := mineBlock(t, nil, block.GenesisPreviousHash, 0)
	nb2 := mineBlock(t, nil, nb1.Hash, 0)

	replaced, restored, err := c.Replace([]block.Block{nb1, nb2})
	assert.NoError(err)
	assert.True(replaced)
	assert.Equal([]txn.Transaction{oldTx}, restored)
	assert.Equal(2, c.Len())
}

func TestReplaceRejectsInvalidCandidate(t *testing.T) {
	assert := assert.New(t)

	c := New(4)
	lowDifficulty := mineBlock(t, nil, block.GenesisPreviousHash, 0)
	other := mineBlock(t, nil, lowDifficulty.Hash, 0)

	replaced, _, err := c.Replace([]block.Block{lowDifficulty, other})
	assert.False(replaced)
	assert.Error(err)
}
