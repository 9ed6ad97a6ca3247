package peer

import (
	"encoding/json"

	"github.com/dusknet/dusknet/internal/block"
	"github.com/dusknet/dusknet/internal/chain"
	"github.com/dusknet/dusknet/internal/txn"
)

type chainResponseMsg struct {
	Type  string        `json:"type"`
	Chain []block.Block `json:"chain"`
}

type requestChainMsg struct {
	Type string `json:"type"`
}

func isBlockShaped(raw map[string]interface{}) bool {
	for _, key := range []string{"hash", "previous_hash", "transactions", "nonce"} {
		if _, ok := raw[key]; !ok {
			return false
		}
	}
	return true
}

// runPeerReader processes every complete JSON message on a
// miner-classified connection until it closes, in arrival order, per
// spec.md §4.4 / §5.
func (n *Node) runPeerReader(c *conn) {
	defer func() {
		n.removeConn(c)
		c.close()
	}()

	for {
		line, err := readJSONLine(c)
		if err != nil {
			return
		}
		if line == "" {
			continue
		}
		n.handlePeerMessage(c, line)
	}
}

func readJSONLine(c *conn) (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return trimLine(line), nil
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func (n *Node) handlePeerMessage(c *conn, line string) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		log.WithError(err).Debug("dropping malformed peer message")
		return
	}

	switch t, _ := raw["type"].(string); {
	case t == "REQUEST_CHAIN":
		n.sendChainResponse(c)

	case t == "CHAIN_RESPONSE":
		n.handleChainResponse(line)

	case isBlockShaped(raw):
		n.handleIncomingBlock(c, line)

	case txn.LooksLikeTransaction(raw):
		n.handleIncomingTransaction(c, line)

	default:
		log.WithField("line", line).Debug("dropping unrecognized peer message")
	}
}

func (n *Node) sendChainResponse(c *conn) {
	resp := chainResponseMsg{Type: "CHAIN_RESPONSE", Chain: n.Chain.Snapshot()}
	raw, err := json.Marshal(resp)
	if err != nil {
		log.WithError(err).Error("failed to encode chain response")
		return
	}
	if err := c.send(string(raw) + "\n"); err != nil {
		n.removeConn(c)
	}
}

// RequestChain sends a single REQUEST_CHAIN to one arbitrary
// connected peer, used once on startup to catch up (spec.md §4.4).
func (n *Node) RequestChain() {
	conns := n.liveConns()
	if len(conns) == 0 {
		return
	}
	req := requestChainMsg{Type: "REQUEST_CHAIN"}
	raw, err := json.Marshal(req)
	if err != nil {
		return
	}
	if err := conns[0].send(string(raw) + "\n"); err != nil {
		n.removeConn(conns[0])
	}
}

func (n *Node) handleChainResponse(line string) {
	var msg chainResponseMsg
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		log.WithError(err).Debug("dropping malformed chain response")
		return
	}

	replaced, restored, err := n.Chain.Replace(msg.Chain)
	if err != nil {
		log.WithError(err).Warn("rejected incoming chain")
		return
	}
	if replaced {
		n.Pool.RemovePresentIn(allTransactions(msg.Chain))
		n.Pool.Return(restored)
	}
}

func allTransactions(blocks []block.Block) []txn.Transaction {
	var out []txn.Transaction
	for _, b := range blocks {
		out = append(out, b.Transactions...)
	}
	return out
}

func (n *Node) handleIncomingBlock(c *conn, line string) {
	var b block.Block
	if err := json.Unmarshal([]byte(line), &b); err != nil {
		log.WithError(err).Debug("dropping malformed block")
		return
	}

	result, sealed, err := n.Chain.ReceiveBlock(b)
	switch result {
	case chain.Accepted:
		n.Pool.RemovePresentIn(sealed)
		n.broadcastExcept(line+"\n", c)
	case chain.AlreadyKnown:
		// dedup is a feature, not an error: do not re-flood.
	case chain.Rejected:
		if err != nil {
			log.WithError(err).Debug("block rejected")
		}
	}
}

func (n *Node) handleIncomingTransaction(c *conn, line string) {
	var tx txn.Transaction
	if err := json.Unmarshal([]byte(line), &tx); err != nil {
		log.WithError(err).Debug("dropping malformed transaction")
		return
	}

	if n.Pool.Insert(tx) {
		n.broadcastExcept(line+"\n", c)
	}
}
