package fileproto

import (
	"fmt"
	"io"
	"net"

	"github.com/charmbracelet/log"

	"github.com/dstainton-labs/rudp/fileproto/segment"
	"github.com/dstainton-labs/rudp/transport"
)

// Download requests name from the server at serverAddr and writes the
// received bytes to w, following the same handshake and port-rebinding
// sequence as Upload.
func Download(client *transport.Client, serverAddr net.Addr, name string, w io.Writer, logger *log.Logger) error {
	client.SetTarget(serverAddr)

	req, err := Encode(ReadRequest{Name: name})
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
	logger.Debugf("download %q: worker handshake at %s", name, workerAddr)

	desegmenter := segment.NewDesegmenter(w)
	for {
		payload := client.Recv()
		msg, err := Decode(payload)
		if err != nil {
			continue
		}
		chunk, ok := msg.(FileChunk)
		if !ok {
			return fmt.Errorf("fileproto: unexpected message %T while downloading %q", msg, name)
		}
		if len(chunk.Data) > 0 {
			if err := desegmenter.Write(chunk.Data); err != nil {
				return err
			}
		}
		if chunk.Final {
			return nil
		}
	}
}
