package fileproto

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/transport"
)

func fastConfig() config.Config {
	cfg := config.Default()
	cfg.WindowSize = 8
	cfg.Timer = 20 * time.Millisecond
	cfg.DropThreshold = 20
	return cfg
}

func newLoopbackServer(t *testing.T, root string) *Server {
	t.Helper()
	cfg := fastConfig()
	s, err := NewServer(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}, root, cfg, nil, nil, nil)
	require.NoError(t, err)
	go s.Serve()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUploadThenDownloadRoundTrip(t *testing.T) {
	root := t.TempDir()
	server := newLoopbackServer(t, root)
	cfg := fastConfig()

	uploadClient, err := transport.NewClient(server.LocalAddr(), cfg, nil, nil)
	require.NoError(t, err)
	defer uploadClient.Close()

	payload := bytes.Repeat([]byte("the quick brown fox "), 500) // > one chunk
	require.NoError(t, Upload(uploadClient, server.LocalAddr(), "fox.txt", bytes.NewReader(payload), 64, testLog()))

	// Give the write worker a moment to write every chunk to its file.
	require.Eventually(t, func() bool {
		onDisk, err := os.ReadFile(filepath.Join(root, "fox.txt"))
		return err == nil && bytes.Equal(payload, onDisk)
	}, time.Second, 10*time.Millisecond)

	onDisk, err := os.ReadFile(filepath.Join(root, "fox.txt"))
	require.NoError(t, err)
	require.Equal(t, payload, onDisk)

	downloadClient, err := transport.NewClient(server.LocalAddr(), cfg, nil, nil)
	require.NoError(t, err)
	defer downloadClient.Close()

	var out bytes.Buffer
	require.NoError(t, Download(downloadClient, server.LocalAddr(), "fox.txt", &out, testLog()))
	require.Equal(t, payload, out.Bytes())
}

func TestUploadRejectsExistingFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "exists.txt"), []byte("already here"), 0o644))
	server := newLoopbackServer(t, root)
	cfg := fastConfig()

	client, err := transport.NewClient(server.LocalAddr(), cfg, nil, nil)
	require.NoError(t, err)
	defer client.Close()

	err = Upload(client, server.LocalAddr(), "exists.txt", bytes.NewReader([]byte("new content")), 64, testLog())
	require.Error(t, err)
}

func TestDownloadRejectsMissingFile(t *testing.T) {
	root := t.TempDir()
	server := newLoopbackServer(t, root)
	cfg := fastConfig()

	client, err := transport.NewClient(server.LocalAddr(), cfg, nil, nil)
	require.NoError(t, err)
	defer client.Close()

	var out bytes.Buffer
	err = Download(client, server.LocalAddr(), "missing.txt", &out, testLog())
	require.Error(t, err)
}
