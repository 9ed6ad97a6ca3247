// Command logsink demonstrates and exercises the tag-forwarding log
// hook (internal/logging): it subscribes a printer to the event bus's
// TagTopic, then emits one sample line for each of a few bracketed
// tags ([BOOTSTRAP], [MINER], [PEER], [WALLET]). A real external console
// (spec.md §9, out of scope here) would instead attach over a
// process boundary; this binary documents the seam it would use.
package main

import (
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/dusknet/dusknet/internal/eventbus"
	"github.com/dusknet/dusknet/internal/logging"
)

func main() {
	bus := eventbus.New()

	bus.Subscribe(logging.TagTopic, func(evt eventbus.Event) {
		entry, ok := evt.Payload.(logging.TaggedEntry)
		if !ok {
			return
		}
		fmt.Printf("[%s] %s: %s\n", entry.Tag, entry.Level, entry.Message)
	})

	log := logging.Setup(logging.Options{Bus: bus}).WithFields(logger.Fields{"prefix": "logsink"})

	log.Info("[BOOTSTRAP] registry accepted miner 127.0.0.1:6001")
	log.Info("[MINER] block mined and appended")
	log.Info("[PEER] flooded block to 2 peers")
	log.Info("[WALLET] transaction received")
}
