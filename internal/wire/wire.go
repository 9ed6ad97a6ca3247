// Package wire implements the network's only framing rule: newline
// delimited UTF-8 JSON, plus the peek-based handshake classification
// that lets one listening port serve both miners and wallets.
package wire

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MinerHandshake is the exact first line an outbound miner connection
// sends to identify itself to the accepting side.
const MinerHandshake = "MINER\n"

// handshakePeekBytes is exactly the length of "MINER": Peek waits until
// that many bytes have arrived (or the deadline passes), so the prefix
// is seen whole even if split across TCP segments, while a short first
// frame is not held back waiting for more bytes than it needs.
const handshakePeekBytes = len("MINER")

// Kind classifies an accepted connection.
type Kind int

const (
	// KindWallet is any connection that did not open with "MINER".
	KindWallet Kind = iota
	// KindMiner is a connection whose first line was the miner
	// handshake.
	KindMiner
)

// Classify peeks the start of conn's first line without consuming it (unless
// it turns out to be the miner handshake, which is then consumed).
// classifyTimeout bounds how long a silent peer can delay
// classification; on timeout the connection defaults to KindWallet so
// a silent peer never wedges the acceptor.
func Classify(conn net.Conn, r *bufio.Reader, classifyTimeout time.Duration) (Kind, error) {
	if err := conn.SetReadDeadline(time.Now().Add(classifyTimeout)); err != nil {
		return KindWallet, errors.Wrap(err, "wire: set classify deadline")
	}
	defer conn.SetReadDeadline(time.Time{})

	peeked, err := r.Peek(1)
	if err != nil {
		// No data arrived before the deadline (or the peer closed);
		// treat as wallet so the reaper's timeout, not this one,
		// cleans it up.
		return KindWallet, nil
	}
	_ = peeked

	line, err := r.Peek(handshakePeekBytes)
	if err != nil && len(line) == 0 {
		return KindWallet, nil
	}

	if strings.HasPrefix(string(line), "MINER") {
		// Consume exactly the handshake line.
		if _, err := r.ReadString('\n'); err != nil {
			return KindMiner, errors.Wrap(err, "wire: consume handshake")
		}
		return KindMiner, nil
	}

	return KindWallet, nil
}

// SendHandshake writes the outbound miner handshake line.
func SendHandshake(w *bufio.Writer) error {
	if _, err := w.WriteString(MinerHandshake); err != nil {
		return errors.Wrap(err, "wire: send handshake")
	}
	return w.Flush()
}

// WriteLine marshals v to JSON and writes it followed by a newline.
func WriteLine(w *bufio.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "wire: encode")
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "wire: write")
	}
	return w.Flush()
}

// ReadLine reads one newline-terminated line, trimmed of the
// terminator and surrounding whitespace.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
