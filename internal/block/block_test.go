package block

import (
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/dusknet/dusknet/internal/txn"
)

func sampleTxs() []txn.Transaction {
	return []txn.Transaction{
		{Sender: "alice", Receiver: "bob", Amount: 10, TransactionFees: 0.1},
		{Sender: "bob", Receiver: "carol", Amount: 5, TransactionFees: 0.2},
		{Sender: "carol", Receiver: "dave", Amount: 1, TransactionFees: 0.05},
	}
}

func TestBuildMerkleRootEmpty(t *testing.T) {
	assert := assert.New(t)

	root, err := BuildMerkleRoot(nil)
	assert.NoError(err)
	assert.Equal("", root)
}

func TestBuildMerkleRootDeterministic(t *testing.T) {
	assert := assert.New(t)

	txs := sampleTxs()
	r1, err := BuildMerkleRoot(txs)
	assert.NoError(err)
	r2, err := BuildMerkleRoot(txs)
	assert.NoError(err)
	assert.Equal(r1, r2)
	assert.NotEmpty(r1)
}

func TestBuildMerkleRootOrderSensitive(t *testing.T) {
	assert := assert.New(t)

	txs := sampleTxs()
	r1, err := BuildMerkleRoot(txs)
	assert.NoError(err)

	reordered := []txn.Transaction{txs[1], txs[0], txs[2]}
	r2, err := BuildMerkleRoot(reordered)
	assert.NoError(err)

	assert.NotEqual(r1, r2)
}

func TestBuildMerkleRootOddDuplicatesLast(t *testing.T) {
	assert := assert.New(t)

	txs := sampleTxs()
	oddRoot, err := BuildMerkleRoot(txs)
	assert.NoError(err)

	evenRoot, err := BuildMerkleRoot(append(txs, txs[2]))
	assert.NoError(err)

	assert.Equal(oddRoot, evenRoot)
}

func TestNewBlockHashRoundTrips(t *testing.T) {
	assert := assert.New(t)

	b, err := New(sampleTxs(), GenesisPreviousHash, 1700000000.0)
	assert.NoError(err)

	recomputed, err := b.ComputeHash()
	assert.NoError(err)
	assert.Equal(b.Hash, recomputed)
}

func TestMeetsDifficulty(t *testing.T) {
	assert := assert.New(t)

	assert.True(MeetsDifficulty("00ab12", 2))
	assert.False(MeetsDifficulty("0fab12", 2))
	assert.True(MeetsDifficulty("anything", 0))
	assert.False(MeetsDifficulty("0", 2))
}

func TestValidateStandaloneRejectsTamperedHash(t *testing.T) {
	assert := assert.New(t)

	b, err := New(sampleTxs(), GenesisPreviousHash, 1700000000.0)
	assert.NoError(err)

	b.Hash = "not-the-real-hash"
	assert.Error(b.ValidateStandalone(0))
}

func TestContainsIdentity(t *testing.T) {
	assert := assert.New(t)

	b, err := New(sampleTxs(), GenesisPreviousHash, 1700000000.0)
	assert.NoError(err)

	assert.True(b.ContainsIdentity(txn.Identity{Sender: "alice", Receiver: "bob", Amount: 10}))
	assert.False(b.ContainsIdentity(txn.Identity{Sender: "alice", Receiver: "dave", Amount: 10}))
}
