package walletrpc

import (
	"encoding/json"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/dusknet/dusknet/internal/block"
	"github.com/dusknet/dusknet/internal/txn"
)

type fakeNode struct {
	inserted  []txn.Transaction
	broadcast []string
	chain     []block.Block
	mempool   []txn.Transaction
}

func (n *fakeNode) InsertTransaction(tx txn.Transaction) bool {
	n.inserted = append(n.inserted, tx)
	return true
}

func (n *fakeNode) BroadcastRaw(line string) { n.broadcast = append(n.broadcast, line) }
func (n *fakeNode) Balance(wallet string) float64 {
	return Balance(wallet, n.chain, n.mempool)
}
func (n *fakeNode) ChainSnapshot() []block.Block       { return n.chain }
func (n *fakeNode) MempoolSnapshot() []txn.Transaction { return n.mempool }

func TestHandleTransactionInsertsAndBroadcasts(t *testing.T) {
	assert := assert.New(t)

	n := &fakeNode{}
	req := `{"type":"TRANSACTION","sender":"a","receiver":"b","amount":5,"fee":0.1}`

	resp := Handle(req, n)
	assert.Equal(transactionReceivedResponse{Status: "transaction_received"}, resp)
	assert.Len(n.inserted, 1)
	assert.Len(n.broadcast, 1)
}

func TestHandleGetBalance(t *testing.T) {
	assert := assert.New(t)

	n := &fakeNode{
		mempool: []txn.Transaction{{Sender: "a", Receiver: "b", Amount: 3}},
	}
	resp := Handle(`{"type":"GET_BALANCE","wallet":"b"}`, n)
	assert.Equal(balanceResponse{Status: "success", Balance: 3}, resp)
}

func TestHandleGetBlockchain(t *testing.T) {
	assert := assert.New(t)

	n := &fakeNode{chain: []block.Block{{Hash: "h1"}}}
	resp := Handle(`{"type":"GET_BLOCKCHAIN"}`, n)
	assert.Equal(blockchainResponse{Status: "success", Blockchain: n.chain}, resp)
}

func TestHandleGetMempool(t *testing.T) {
	assert := assert.New(t)

	n := &fakeNode{mempool: []txn.Transaction{{Sender: "a", Receiver: "b", Amount: 1}}}
	resp := Handle(`{"type":"GET_MEMPOOL"}`, n)
	assert.Equal(mempoolResponse{Status: "success", Mempool: n.mempool}, resp)
}

func TestHandleUnknownType(t *testing.T) {
	assert := assert.New(t)

	resp := Handle(`{"type":"BOGUS"}`, &fakeNode{})
	assert.Equal(errorResponse{Status: "error", Message: "Unknown request"}, resp)
}

func TestHandleInvalidJSON(t *testing.T) {
	assert := assert.New(t)

	resp := Handle(`not json`, &fakeNode{})
	assert.Equal(errorResponse{Status: "error", Message: "Invalid JSON"}, resp)
}

func TestBalanceDebitsSenderCreditsReceiver(t *testing.T) {
	assert := assert.New(t)

	chain := []block.Block{
		{Transactions: []txn.Transaction{{Sender: "a", Receiver: "b", Amount: 10}}},
	}
	mempool := []txn.Transaction{{Sender: "b", Receiver: "c", Amount: 4}}

	assert.Equal(-10.0, Balance("a", chain, mempool))
	assert.Equal(6.0, Balance("b", chain, mempool))
	assert.Equal(4.0, Balance("c", chain, mempool))
}

func TestResponsesRoundTripJSON(t *testing.T) {
	assert := assert.New(t)

	resp := Handle(`{"type":"GET_MEMPOOL"}`, &fakeNode{})
	raw, err := json.Marshal(resp)
	assert.NoError(err)
	assert.Contains(string(raw), `"status":"success"`)
}
