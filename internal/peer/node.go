// Package peer implements the miner's network surface: the
// connection dispatcher that multiplexes a single listen port between
// miner and wallet traffic, the peer protocol (chain requests,
// blocks, transactions, flood gossip), and peer discovery against the
// bootstrap registry.
package peer

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/dusknet/dusknet/internal/block"
	"github.com/dusknet/dusknet/internal/bootstrap"
	"github.com/dusknet/dusknet/internal/chain"
	"github.com/dusknet/dusknet/internal/mempool"
	"github.com/dusknet/dusknet/internal/txn"
)

var log = logger.WithFields(logger.Fields{"prefix": "peer"})

// WalletIdleTimeout bounds how long a wallet-classified connection
// may sit idle between requests before it is reaped, so a silent or
// misclassified peer can never wedge a handler slot (spec.md §5).
const WalletIdleTimeout = 10 * time.Second

// handshakeClassifyTimeout bounds how long dispatch waits for the
// first bytes before defaulting a connection to wallet handling.
const handshakeClassifyTimeout = 2 * time.Second

// Node is one miner's networking state: its chain, mempool, listen
// address, and the live set of peer sockets.
type Node struct {
	SelfIP   string
	SelfPort int

	Chain      *chain.Chain
	Pool       *mempool.Pool
	Difficulty int

	bootstrapClient *bootstrap.Client

	mu             sync.Mutex
	conns          []*conn
	connectedAddrs map[string]bool
}

// New returns a Node for a miner listening on ip:port, discovering
// peers through the bootstrap registry at bootstrapAddr.
func New(ip string, port int, c *chain.Chain, p *mempool.Pool, difficulty int, bootstrapAddr string) *Node {
	n := &Node{
		SelfIP:          ip,
		SelfPort:        port,
		Chain:           c,
		Pool:            p,
		Difficulty:      difficulty,
		bootstrapClient: bootstrap.NewClient(bootstrapAddr),
		connectedAddrs:  make(map[string]bool),
	}
	p.SetChainChecker(c.ContainsIdentity)
	return n
}

// -- walletrpc.Node / mining.Broadcaster implementation --

// InsertTransaction adds tx to the mempool, returning true if it was
// newly inserted.
func (n *Node) InsertTransaction(tx txn.Transaction) bool {
	return n.Pool.Insert(tx)
}

// Balance computes wallet's balance from the chain then the mempool.
func (n *Node) Balance(wallet string) float64 {
	return balance(wallet, n.Chain.Snapshot(), n.Pool.SnapshotSorted())
}

// ChainSnapshot returns the current chain, oldest block first.
func (n *Node) ChainSnapshot() []block.Block {
	return n.Chain.Snapshot()
}

// MempoolSnapshot returns the mempool, fee-descending.
func (n *Node) MempoolSnapshot() []txn.Transaction {
	return n.Pool.SnapshotSorted()
}

// BroadcastRaw sends an already-framed request line (e.g. a wallet's
// TRANSACTION request) to every connected peer, newline appended if
// missing.
func (n *Node) BroadcastRaw(line string) {
	n.broadcastExcept(ensureNewline(line), nil)
}

// BroadcastBlock serializes b and floods it to every connected peer.
// Used by internal/mining once a block is successfully mined locally.
func (n *Node) BroadcastBlock(b block.Block) {
	raw, err := json.Marshal(b)
	if err != nil {
		log.WithError(err).Error("failed to encode mined block for broadcast")
		return
	}
	n.broadcastExcept(string(raw)+"\n", nil)
}

// Cancel implements chain.Canceller indirectly through the mining
// package; Node itself does not cancel mining, it is wired in cmd/minerd.

func ensureNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}

func balance(wallet string, chainBlocks []block.Block, mempoolTxs []txn.Transaction) float64 {
	var bal float64
	for _, b := range chainBlocks {
		for _, t := range b.Transactions {
			if t.Sender == wallet {
				bal -= t.Amount
			}
			if t.Receiver == wallet {
				bal += t.Amount
			}
		}
	}
	for _, t := range mempoolTxs {
		if t.Sender == wallet {
			bal -= t.Amount
		}
		if t.Receiver == wallet {
			bal += t.Amount
		}
	}
	return bal
}

// -- peer set management --

func (n *Node) addConn(c *conn) {
	n.mu.Lock()
	n.conns = append(n.conns, c)
	n.mu.Unlock()
}

func (n *Node) removeConn(c *conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.conns {
		if existing == c {
			n.conns = append(n.conns[:i], n.conns[i+1:]...)
			return
		}
	}
}

func (n *Node) liveConns() []*conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*conn, len(n.conns))
	copy(out, n.conns)
	return out
}

// broadcastExcept sends line to every peer connection other than
// except (which may be nil to mean "no exclusion"). Failed writes
// drop that connection from the peer set without retry; surviving
// peers still receive the message.
func (n *Node) broadcastExcept(line string, except *conn) {
	sent := 0
	for _, c := range n.liveConns() {
		if c == except {
			continue
		}
		if err := c.send(line); err != nil {
			n.removeConn(c)
			continue
		}
		sent++
	}
	log.WithField("peers", sent).Debug("broadcast")
}

func (n *Node) markConnected(addr string) {
	n.mu.Lock()
	n.connectedAddrs[addr] = true
	n.mu.Unlock()
}

func (n *Node) isConnected(addr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connectedAddrs[addr]
}

func (n *Node) selfAddr() string {
	return addrKey(n.SelfIP, n.SelfPort)
}

func addrKey(ip string, port int) string {
	return ip + ":" + strconv.Itoa(port)
}
