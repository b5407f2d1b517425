// Command rudp-upload sends a local file to a rudp-server instance.
package main

import (
	"flag"
	"net"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/dstainton-labs/rudp/fileproto"
	"github.com/dstainton-labs/rudp/fileproto/segment"
	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/transport"
)

func main() {
	var (
		server     string
		file       string
		remoteName string
		configPath string
	)
	flag.StringVar(&server, "server", "127.0.0.1:9999", "Server address")
	flag.StringVar(&file, "file", "", "Local file to upload")
	flag.StringVar(&remoteName, "name", "", "Remote file name (defaults to -file's base name)")
	flag.StringVar(&configPath, "config", "", "Path to a TOML config file")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "rudp-upload"})

	if file == "" {
		logger.Fatalf("-file is required")
	}
	if remoteName == "" {
		remoteName = filepath.Base(file)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	serverAddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		logger.Fatalf("resolving %q: %v", server, err)
	}

	f, err := os.Open(file)
	if err != nil {
		logger.Fatalf("opening %q: %v", file, err)
	}
	defer f.Close()

	client, err := transport.NewClient(serverAddr, cfg, logger, nil)
	if err != nil {
		logger.Fatalf("starting client: %v", err)
	}
	defer client.Close()

	if err := fileproto.Upload(client, serverAddr, remoteName, f, segment.DefaultChunkSize, logger); err != nil {
		logger.Fatalf("upload failed: %v", err)
	}
	logger.Infof("uploaded %q as %q", file, remoteName)
}
