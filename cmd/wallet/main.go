// Command wallet is a one-shot client for talking to a single miner
// over its wallet protocol: submit a transaction, or read its balance
// view, chain, or mempool (spec.md §4.3), grounded in the original
// source's client console.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"time"
)

const requestTimeout = 5 * time.Second

func main() {
	var (
		minerAddr = flag.String("miner", "127.0.0.1:6001", "miner address, ip:port")
		cmd       = flag.String("cmd", "", "one of: send, balance, chain, mempool")
		sender    = flag.String("sender", "", "sender wallet name (send)")
		receiver  = flag.String("receiver", "", "receiver wallet name (send)")
		amount    = flag.Float64("amount", 0, "amount to send (send)")
		fee       = flag.Float64("fee", 0, "transaction fee (send)")
		wallet    = flag.String("wallet", "", "wallet name (balance)")
	)
	flag.Parse()

	var req map[string]interface{}
	switch *cmd {
	case "send":
		req = map[string]interface{}{
			"type":             "TRANSACTION",
			"sender":           *sender,
			"receiver":         *receiver,
			"amount":           *amount,
			"transaction_fees": *fee,
		}
	case "balance":
		req = map[string]interface{}{"type": "GET_BALANCE", "wallet": *wallet}
	case "chain":
		req = map[string]interface{}{"type": "GET_BLOCKCHAIN"}
	case "mempool":
		req = map[string]interface{}{"type": "GET_MEMPOOL"}
	default:
		fmt.Fprintln(os.Stderr, "wallet: -cmd must be one of send, balance, chain, mempool")
		os.Exit(1)
	}

	resp, err := roundTrip(*minerAddr, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wallet:", err)
		os.Exit(1)
	}

	pretty, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(pretty))
}

func roundTrip(addr string, req map[string]interface{}) (map[string]interface{}, error) {
	nc, err := net.DialTimeout("tcp", addr, requestTimeout)
	if err != nil {
		return nil, err
	}
	defer nc.Close()
	nc.SetDeadline(time.Now().Add(requestTimeout))

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := nc.Write(append(raw, '\n')); err != nil {
		return nil, err
	}

	line, err := bufio.NewReader(nc).ReadString('\n')
	if err != nil {
		return nil, err
	}

	var resp map[string]interface{}
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
