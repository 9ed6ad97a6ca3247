package peer

import (
	"net"
	"strconv"
	"time"

	"github.com/dusknet/dusknet/internal/wire"
)

// reconcilePeriod is how often the background reconciler re-fetches
// the peer list and dials anything new (spec.md §4.7 suggests 5-10s).
const reconcilePeriod = 7 * time.Second

// dialTimeout bounds outbound peer connection attempts.
const dialTimeout = 5 * time.Second

// Start registers with the bootstrap registry, opens outbound links
// to every peer it returns, requests the chain from one of them to
// catch up, and launches the background reconciliation loop. It
// returns once the initial registration round has completed; the
// reconciler keeps running until stop is closed.
func (n *Node) Start(id string, stop <-chan struct{}) {
	miners, err := n.bootstrapClient.Register(n.SelfIP, n.SelfPort, id)
	if err != nil {
		log.WithError(err).Warn("failed to register with bootstrap")
	}

	for _, m := range miners {
		n.maybeDial(m.IP, m.Port)
	}

	if len(n.liveConns()) > 0 {
		n.RequestChain()
	}

	go n.reconcileLoop(stop)
}

func (n *Node) maybeDial(ip string, port int) {
	if ip == n.SelfIP && port == n.SelfPort {
		return
	}
	addr := addrKey(ip, port)
	if n.isConnected(addr) {
		return
	}
	n.dialPeer(ip, port)
}

func (n *Node) dialPeer(ip string, port int) {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	nc, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		log.WithError(err).WithField("addr", addr).Debug("failed to connect to peer")
		return
	}

	c := newConn(nc, addr)
	if err := wire.SendHandshake(c.writer); err != nil {
		nc.Close()
		return
	}

	n.markConnected(addrKey(ip, port))
	n.addConn(c)
	log.WithField("addr", addr).Info("connected to peer")

	go n.runPeerReader(c)
}

func (n *Node) reconcileLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(reconcilePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, m := range n.bootstrapClient.GetMiners() {
				n.maybeDial(m.IP, m.Port)
			}
		}
	}
}
