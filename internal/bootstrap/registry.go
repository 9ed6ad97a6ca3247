// Package bootstrap implements the minimal peer-discovery rendezvous:
// a registry that accepts one-shot, request/response TCP connections
// from miners registering themselves or asking who else is around.
package bootstrap

import (
	"bufio"
	"encoding/json"
	"net"
	"strconv"
	"sync"

	logger "github.com/sirupsen/logrus"

	"github.com/dusknet/dusknet/internal/wire"
)

var log = logger.WithFields(logger.Fields{"prefix": "bootstrap"})

// MinerAddr is one registered miner's reachable address.
type MinerAddr struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

type registerRequest struct {
	Type string `json:"type"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
	ID   string `json:"id"`
}

type genericRequest struct {
	Type string `json:"type"`
}

type registerResponse struct {
	Status string      `json:"status"`
	Miners []MinerAddr `json:"miners"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Registry holds the set of currently known miners. It never
// deregisters entries; stale peers are tolerated and filtered out by
// connection failure on the peer side. There is no persistence.
type Registry struct {
	addrsMu sync.Mutex
	addrs   map[string]MinerAddr
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{addrs: make(map[string]MinerAddr)}
}

func key(ip string, port int) string {
	return ip + ":" + strconv.Itoa(port)
}

// snapshot returns the currently registered miners in no particular
// order.
func (r *Registry) snapshot() []MinerAddr {
	r.addrsMu.Lock()
	defer r.addrsMu.Unlock()
	out := make([]MinerAddr, 0, len(r.addrs))
	for _, a := range r.addrs {
		out = append(out, a)
	}
	return out
}

func (r *Registry) register(ip string, port int) []MinerAddr {
	r.addrsMu.Lock()
	r.addrs[key(ip, port)] = MinerAddr{IP: ip, Port: port}
	r.addrsMu.Unlock()
	return r.snapshot()
}

// ListenAndServe accepts connections on addr until the listener is
// closed. Each connection carries exactly one request and one
// response, then is closed, matching spec.md §4.1.
func (r *Registry) ListenAndServe(addr string, backlog int) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.WithField("addr", addr).Info("bootstrap registry listening")
	return r.serve(ln)
}

func (r *Registry) serve(ln net.Listener) error {
	defer ln.Close()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go r.handleConn(conn)
	}
}

func (r *Registry) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	line, err := wire.ReadLine(reader)
	if err != nil || line == "" {
		return
	}

	var generic genericRequest
	if err := json.Unmarshal([]byte(line), &generic); err != nil {
		_ = wire.WriteLine(writer, errorResponse{Error: "unknown request"})
		return
	}

	switch generic.Type {
	case "REGISTER_MINER":
		var req registerRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			_ = wire.WriteLine(writer, errorResponse{Error: "unknown request"})
			return
		}
		miners := r.register(req.IP, req.Port)
		log.WithFields(logger.Fields{"ip": req.IP, "port": req.Port}).Info("miner registered")
		_ = wire.WriteLine(writer, registerResponse{Status: "registered", Miners: miners})

	case "GET_MINERS":
		_ = wire.WriteLine(writer, r.snapshot())

	default:
		_ = wire.WriteLine(writer, errorResponse{Error: "unknown request"})
	}
}
