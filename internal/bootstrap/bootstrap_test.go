package bootstrap

import (
	"net"
	"testing"

	assert "github.com/stretchr/testify/require"
)

func startRegistry(t *testing.T) (addr string, stop func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	r := New()
	go r.serve(ln)

	return ln.Addr().String(), func() { ln.Close() }
}

func TestRegisterThenGetMiners(t *testing.T) {
	assert := assert.New(t)

	addr, stop := startRegistry(t)
	defer stop()

	c := NewClient(addr)

	miners, err := c.Register("127.0.0.1", 7001, "miner-a")
	assert.NoError(err)
	assert.Len(miners, 1)

	miners, err = c.Register("127.0.0.1", 7002, "miner-b")
	assert.NoError(err)
	assert.Len(miners, 2)

	got := c.GetMiners()
	assert.Len(got, 2)
}

func TestGetMinersOnUnreachableRegistryReturnsNil(t *testing.T) {
	assert := assert.New(t)

	c := NewClient("127.0.0.1:1")
	assert.Nil(c.GetMiners())
}

func TestRegisterIsIdempotentPerAddress(t *testing.T) {
	assert := assert.New(t)

	addr, stop := startRegistry(t)
	defer stop()

	c := NewClient(addr)

	_, err := c.Register("127.0.0.1", 7003, "miner-a")
	assert.NoError(err)
	miners, err := c.Register("127.0.0.1", 7003, "miner-a")
	assert.NoError(err)
	assert.Len(miners, 1)
}
