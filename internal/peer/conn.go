package peer

import (
	"bufio"
	"net"
	"sync"
)

// conn wraps one live TCP link to a fellow miner. Writes are
// serialized per-connection because the gossip broadcaster and the
// reply-to-REQUEST_CHAIN path can both want to write concurrently.
type conn struct {
	nc     net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex
	writer  *bufio.Writer

	addr string // best-known "ip:port" for this peer, for logging only
}

func newConn(nc net.Conn, addr string) *conn {
	return &conn{
		nc:     nc,
		reader: bufio.NewReader(nc),
		writer: bufio.NewWriter(nc),
		addr:   addr,
	}
}

// send writes a single already-framed line (expected to already end
// in "\n", or to not need one) to the peer. A failed write marks the
// connection dead by closing it; the caller is responsible for
// dropping it from the peer set on the next pass.
func (c *conn) send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.WriteString(line); err != nil {
		c.nc.Close()
		return err
	}
	if err := c.writer.Flush(); err != nil {
		c.nc.Close()
		return err
	}
	return nil
}

func (c *conn) close() {
	c.nc.Close()
}
