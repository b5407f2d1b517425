// Command rudp-server listens for file transfer requests and serves or
// accepts files rooted at a given directory, per spec.md §4.7.
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/dstainton-labs/rudp/fileproto"
	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/reliability"
)

func main() {
	var (
		listen     string
		root       string
		configPath string
	)
	flag.StringVar(&listen, "listen", ":9999", "Address to listen on")
	flag.StringVar(&root, "root", ".", "Directory to serve files from")
	flag.StringVar(&configPath, "config", "", "Path to a TOML config file")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "rudp-server"})

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	addr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		logger.Fatalf("resolving %q: %v", listen, err)
	}

	metrics := reliability.NewMetrics(nil)
	applog := logging.MustGetLogger("rudp-server")
	server, err := fileproto.NewServer(addr, root, cfg, logger, applog, metrics)
	if err != nil {
		logger.Fatalf("starting server: %v", err)
	}
	logger.Infof("serving %s on %s", root, server.LocalAddr())

	go server.Serve()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Infof("shutting down")
	if err := server.Close(); err != nil {
		logger.Errorf("closing server: %v", err)
	}
}
