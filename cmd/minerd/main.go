// Command minerd runs one miner node: it serves the peer and wallet
// protocols on a single listen port, discovers and gossips with other
// miners through the bootstrap registry, and mines new blocks out of
// its mempool whenever enough transactions have queued up (spec.md
// §4).
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"github.com/dusknet/dusknet/internal/chain"
	"github.com/dusknet/dusknet/internal/config"
	"github.com/dusknet/dusknet/internal/eventbus"
	"github.com/dusknet/dusknet/internal/logging"
	"github.com/dusknet/dusknet/internal/mempool"
	"github.com/dusknet/dusknet/internal/mining"
	"github.com/dusknet/dusknet/internal/peer"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to a .toml/.yaml/.properties config file")
		listenIP      = flag.String("ip", "127.0.0.1", "this miner's listen IP")
		listenPort    = flag.Int("port", 0, "this miner's listen port (required unless -listen is set)")
		listenAddr    = flag.String("listen", "", "this miner's listen address, ip:port (overrides -ip and -port)")
		bootstrapAddr = flag.String("bootstrap", "", "bootstrap registry address, ip:port (overrides config)")
		difficulty    = flag.Int("difficulty", 0, "proof-of-work difficulty override")
		blockSize     = flag.Int("block-size", 0, "transactions per block override")
		logFile       = flag.String("log-file", "", "optional rotated log file path")
	)
	flag.Parse()

	if *listenAddr != "" {
		host, portStr, err := net.SplitHostPort(*listenAddr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "minerd: bad -listen address:", err)
			os.Exit(1)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "minerd: bad -listen port:", err)
			os.Exit(1)
		}
		*listenIP, *listenPort = host, port
	}

	if *listenPort == 0 {
		fmt.Fprintln(os.Stderr, "minerd: -listen or -port is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	if *difficulty != 0 {
		cfg.MiningDifficulty = *difficulty
	}
	if *blockSize != 0 {
		cfg.TransPerBlock = *blockSize
	}
	bootstrap := *bootstrapAddr
	if bootstrap == "" {
		bootstrap = cfg.BootstrapIP + ":" + strconv.Itoa(cfg.BootstrapPort)
	}

	bus := eventbus.New()
	log := logging.Setup(logging.Options{
		LogFile: *logFile,
		Bus:     bus,
	}).WithFields(logger.Fields{"prefix": "minerd"})

	c := chain.New(cfg.MiningDifficulty)
	pool := mempool.New(c.ContainsIdentity)
	node := peer.New(*listenIP, *listenPort, c, pool, cfg.MiningDifficulty, bootstrap)
	miner := mining.New(c, pool, node, cfg.TransPerBlock, cfg.MiningDifficulty)
	c.SetCanceller(miner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go miner.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- node.ListenAndServe(cfg.QueuedConnection) }()

	id := *listenIP + ":" + strconv.Itoa(*listenPort)
	stopDiscovery := make(chan struct{})
	go node.Start(id, stopDiscovery)

	log.WithFields(logger.Fields{
		"addr":       id,
		"bootstrap":  bootstrap,
		"difficulty": cfg.MiningDifficulty,
		"blockSize":  cfg.TransPerBlock,
	}).Info("miner starting")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.WithError(err).Fatal("listener stopped")
	case s := <-sig:
		log.WithField("signal", s).Info("shutting down")
		close(stopDiscovery)
		cancel()
	}
}
