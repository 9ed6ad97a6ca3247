// Command bootstrapd runs the rendezvous registry miners use to find
// each other: a miner registers its own address and gets back the
// addresses registered so far (spec.md §4.1).
package main

import (
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"github.com/dusknet/dusknet/internal/bootstrap"
	"github.com/dusknet/dusknet/internal/config"
	"github.com/dusknet/dusknet/internal/eventbus"
	"github.com/dusknet/dusknet/internal/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a .toml/.yaml/.properties config file")
		listenIP   = flag.String("ip", "", "listen IP (overrides config bootstrap_ip)")
		listenPort = flag.Int("port", 0, "listen port (overrides config bootstrap_port)")
		logFile    = flag.String("log-file", "", "optional rotated log file path")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	if *listenIP != "" {
		cfg.BootstrapIP = *listenIP
	}
	if *listenPort != 0 {
		cfg.BootstrapPort = *listenPort
	}

	log := logging.Setup(logging.Options{
		LogFile: *logFile,
		Bus:     eventbus.New(),
	}).WithFields(logger.Fields{"prefix": "bootstrapd"})

	registry := bootstrap.New()

	addr := cfg.BootstrapIP + ":" + strconv.Itoa(cfg.BootstrapPort)
	log.WithField("addr", addr).Info("bootstrap registry listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- registry.ListenAndServe(addr, cfg.QueuedConnection)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.WithError(err).Fatal("registry stopped")
	case s := <-sig:
		log.WithField("signal", s).Info("shutting down")
	}
}
