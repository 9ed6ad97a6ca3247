package wire

import (
	"bufio"
	"net"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
)

func dialPair(t *testing.T) (server, client net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		acceptCh <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	assert.NoError(t, err)

	server = <-acceptCh
	return server, client
}

func TestClassifyMinerHandshake(t *testing.T) {
	assert := assert.New(t)

	server, client := dialPair(t)
	defer server.Close()
	defer client.Close()

	w := bufio.NewWriter(client)
	assert.NoError(SendHandshake(w))

	kind, err := Classify(server, bufio.NewReader(server), time.Second)
	assert.NoError(err)
	assert.Equal(KindMiner, kind)
}

func TestClassifyDefaultsToWalletOnOtherInput(t *testing.T) {
	assert := assert.New(t)

	server, client := dialPair(t)
	defer server.Close()
	defer client.Close()

	_, err := client.Write([]byte(`{"type":"GET_BALANCE","wallet":"a"}` + "\n"))
	assert.NoError(err)

	kind, err := Classify(server, bufio.NewReader(server), time.Second)
	assert.NoError(err)
	assert.Equal(KindWallet, kind)
}

func TestClassifyDefaultsToWalletOnSilence(t *testing.T) {
	assert := assert.New(t)

	server, client := dialPair(t)
	defer server.Close()
	defer client.Close()

	kind, err := Classify(server, bufio.NewReader(server), 50*time.Millisecond)
	assert.NoError(err)
	assert.Equal(KindWallet, kind)
}

func TestWriteLineThenReadLine(t *testing.T) {
	assert := assert.New(t)

	server, client := dialPair(t)
	defer server.Close()
	defer client.Close()

	type payload struct {
		Type string `json:"type"`
	}
	assert.NoError(WriteLine(bufio.NewWriter(client), payload{Type: "REQUEST_CHAIN"}))

	line, err := ReadLine(bufio.NewReader(server))
	assert.NoError(err)
	assert.Equal(`{"type":"REQUEST_CHAIN"}`, line)
}
