package peer

import (
	"encoding/json"
	"time"

	"github.com/dusknet/dusknet/internal/walletrpc"
)

// handleWallet serves request/response pairs on a wallet-classified
// connection until it closes or goes idle past WalletIdleTimeout.
func (n *Node) handleWallet(c *conn) {
	defer c.close()

	for {
		if err := c.nc.SetReadDeadline(time.Now().Add(WalletIdleTimeout)); err != nil {
			return
		}

		line, err := c.reader.ReadString('\n')
		if err != nil {
			return
		}
		line = trimLine(line)
		if line == "" {
			continue
		}

		resp := walletrpc.Handle(line, n)
		raw, err := json.Marshal(resp)
		if err != nil {
			log.WithError(err).Error("failed to encode wallet response")
			return
		}
		if err := c.send(string(raw) + "\n"); err != nil {
			return
		}
	}
}
