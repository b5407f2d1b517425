package fileproto

import (
	"fmt"
	"io"
	"net"

	"github.com/charmbracelet/log"

	"github.com/dstainton-labs/rudp/fileproto/segment"
	"github.com/dstainton-labs/rudp/transport"
)

// Upload sends the contents of r to the server at serverAddr under name. It
// drives the handshake described by spec.md §4.6: the WriteRequest is sent
// to the server's well-known address, and once the worker's AckHandshake
// arrives from its ephemeral port, client is rebound to talk to that worker
// for the rest of the transfer.
func Upload(client *transport.Client, serverAddr net.Addr, name string, r io.Reader, chunkSize int, logger *log.Logger) error {
	client.SetTarget(serverAddr)

	req, err := Encode(WriteRequest{Name: name})
	if err != nil {
		return err
	}
	if err := client.Send(req); err != nil {
		return err
	}

	workerAddr, err := awaitHandshake(client, serverAddr)
	if err != nil {
		return err
	}
	client.SetTarget(workerAddr)
	logger.Debugf("upload %q: worker handshake at %s", name, workerAddr)

	seg := segment.NewSegmenter(r, chunkSize)
	var seq uint32
	for {
		data, final, err := seg.Next()
		if err != nil {
			return err
		}
		chunk, err := Encode(FileChunk{Seq: seq, Final: final, Data: data})
		if err != nil {
			return err
		}
		if err := client.Send(chunk); err != nil {
			return err
		}
		seq++
		if final {
			return nil
		}
	}
}

// awaitHandshake blocks for the worker's initial reply, which spec.md §4.6
// says arrives from a different source address than the well-known server
// address the request was sent to; that address becomes the new target.
// An ErrorReply observed here is surfaced to the caller as an error.
func awaitHandshake(client *transport.Client, wellKnown net.Addr) (net.Addr, error) {
	for {
		payload, from := client.RecvFrom()
		msg, err := Decode(payload)
		if err != nil {
			continue
		}
		switch m := msg.(type) {
		case AckHandshake:
			return from, nil
		case ErrorReply:
			return nil, fmt.Errorf("fileproto: %s", m.Message)
		default:
			continue
		}
	}
}
