// Command rudp-download retrieves a file from a rudp-server instance.
package main

import (
	"flag"
	"net"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/dstainton-labs/rudp/fileproto"
	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/transport"
)

func main() {
	var (
		server     string
		remoteName string
		out        string
		configPath string
	)
	flag.StringVar(&server, "server", "127.0.0.1:9999", "Server address")
	flag.StringVar(&remoteName, "name", "", "Remote file name to fetch")
	flag.StringVar(&out, "out", "", "Local destination (defaults to -name's base name)")
	flag.StringVar(&configPath, "config", "", "Path to a TOML config file")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "rudp-download"})

	if remoteName == "" {
		logger.Fatalf("-name is required")
	}
	if out == "" {
		out = filepath.Base(remoteName)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	serverAddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		logger.Fatalf("resolving %q: %v", server, err)
	}

	f, err := os.Create(out)
	if err != nil {
		logger.Fatalf("creating %q: %v", out, err)
	}
	defer f.Close()

	client, err := transport.NewClient(serverAddr, cfg, logger, nil)
	if err != nil {
		logger.Fatalf("starting client: %v", err)
	}
	defer client.Close()

	if err := fileproto.Download(client, serverAddr, remoteName, f, logger); err != nil {
		logger.Fatalf("download failed: %v", err)
	}
	logger.Infof("downloaded %q to %q", remoteName, out)
}
