package bootstrap

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/pkg/errors"
)

// clientTimeout bounds both connect and read for bootstrap calls;
// failure just skips the current reconciliation cycle (spec.md §5).
const clientTimeout = 5 * time.Second

// Client is the miner-side caller of the bootstrap registry.
type Client struct {
	addr string
}

// NewClient returns a client dialing the registry at addr.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

func (c *Client) roundTrip(request interface{}, response interface{}) error {
	conn, err := net.DialTimeout("tcp", c.addr, clientTimeout)
	if err != nil {
		return errors.Wrap(err, "bootstrap: dial")
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(clientTimeout)); err != nil {
		return errors.Wrap(err, "bootstrap: set deadline")
	}

	reqBytes, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "bootstrap: encode request")
	}
	if _, err := conn.Write(append(reqBytes, '\n')); err != nil {
		return errors.Wrap(err, "bootstrap: write request")
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return errors.Wrap(err, "bootstrap: read response")
	}
	if err := json.Unmarshal([]byte(line), response); err != nil {
		return errors.Wrap(err, "bootstrap: decode response")
	}
	return nil
}

// Register registers ip:port with the bootstrap node and returns the
// full list of currently known miners (which may include the
// caller).
func (c *Client) Register(ip string, port int, id string) ([]MinerAddr, error) {
	req := registerRequest{Type: "REGISTER_MINER", IP: ip, Port: port, ID: id}
	var resp registerResponse
	if err := c.roundTrip(req, &resp); err != nil {
		return nil, err
	}
	return resp.Miners, nil
}

// GetMiners fetches the current peer list. On any failure it returns
// an empty list rather than an error, matching the original's
// skip-this-cycle behavior for the reconciliation loop.
func (c *Client) GetMiners() []MinerAddr {
	req := genericRequest{Type: "GET_MINERS"}
	var resp []MinerAddr
	if err := c.roundTrip(req, &resp); err != nil {
		return nil
	}
	return resp
}
