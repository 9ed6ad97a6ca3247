package peer

import (
	"net"
	"strconv"

	"github.com/dusknet/dusknet/internal/wire"
)

// ListenAndServe accepts connections on n's listen address until the
// listener is closed, dispatching each to the miner or wallet handler
// based on a peek at its first line.
func (n *Node) ListenAndServe(backlog int) error {
	addr := net.JoinHostPort(n.SelfIP, strconv.Itoa(n.SelfPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.WithField("addr", addr).Info("miner listening")
	return n.acceptLoop(ln)
}

func (n *Node) acceptLoop(ln net.Listener) error {
	defer ln.Close()
	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		go n.dispatch(nc)
	}
}

// dispatch peeks the first line of a freshly accepted connection: a
// "MINER" prefix binds it to the peer protocol, anything else
// (including silence, after handshakeClassifyTimeout) binds it to the
// wallet protocol with a read idle timeout.
func (n *Node) dispatch(nc net.Conn) {
	c := newConn(nc, nc.RemoteAddr().String())

	kind, err := wire.Classify(nc, c.reader, handshakeClassifyTimeout)
	if err != nil {
		log.WithError(err).Debug("classification failed")
		nc.Close()
		return
	}

	switch kind {
	case wire.KindMiner:
		log.WithField("addr", c.addr).Info("accepted miner connection")
		n.addConn(c)
		n.runPeerReader(c)
	default:
		n.handleWallet(c)
	}
}
