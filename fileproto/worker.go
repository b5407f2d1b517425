package fileproto

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/dstainton-labs/rudp/fileproto/segment"
	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/reliability"
	"github.com/dstainton-labs/rudp/transport"
)

// Server listens on a well-known address for ReadRequest/WriteRequest
// handshakes and spawns a Worker per accepted request, generalizing
// server.py's Server/ConnectionDirectory/get_random_port() pattern: here "a
// random port" is simply transport.NewClient binding an ephemeral UDP
// socket, and the ConnectionDirectory's bookkeeping is unnecessary because
// each Worker owns its own socket rather than sharing one.
//
// Logging is split the way the teacher splits it: the transport layer logs
// through charmbracelet/log (transportLog, handed down to every
// transport.Transport this Server creates), while the server's own
// request-handling narrative uses a gopkg.in/op/go-logging.v1 logger
// (applog) — the same library disk.go's StateWriter and
// server/cborplugin/client.go used for their own server-side components.
type Server struct {
	transport   *transport.Server
	root        string
	cfg         config.Config
	transportLog *log.Logger
	applog      *logging.Logger
	metrics     *reliability.Metrics
	chunkSize   int
}

// NewServer constructs a file transfer Server rooted at root, bound to addr.
// Either logger may be nil to get a default.
func NewServer(addr *net.UDPAddr, root string, cfg config.Config, transportLog *log.Logger, applog *logging.Logger, metrics *reliability.Metrics) (*Server, error) {
	t, err := transport.NewServer(addr, cfg, transportLog, metrics)
	if err != nil {
		return nil, err
	}
	if transportLog == nil {
		transportLog = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "rudp/transport"})
	}
	if applog == nil {
		applog = logging.MustGetLogger("rudp-server")
	}
	return &Server{
		transport:    t,
		root:         root,
		cfg:          cfg,
		transportLog: transportLog,
		applog:       applog,
		metrics:      metrics,
		chunkSize:    segment.DefaultChunkSize,
	}, nil
}

// LocalAddr returns the server's well-known listening address.
func (s *Server) LocalAddr() net.Addr {
	return s.transport.LocalAddr()
}

// Close shuts down the server's well-known listener. In-flight workers each
// own their own socket and are not affected.
func (s *Server) Close() error {
	return s.transport.Close()
}

// Serve accepts requests on the well-known address until the transport is
// closed, spawning one goroutine per accepted request — the Go equivalent
// of worker.py's Thread-per-request model.
func (s *Server) Serve() {
	for {
		payload, from := s.transport.RecvFrom()
		msg, err := Decode(payload)
		if err != nil {
			s.applog.Warningf("dropping undecodable request from %s: %v", from, err)
			continue
		}
		go s.handleRequest(msg, from)
	}
}

func (s *Server) handleRequest(msg interface{}, from net.Addr) {
	switch m := msg.(type) {
	case WriteRequest:
		s.handleWrite(m, from)
	case ReadRequest:
		s.handleRead(m, from)
	default:
		s.replyError(from, ErrFailedHandshake, fmt.Sprintf("unexpected request %T", msg))
	}
}

func (s *Server) handleWrite(req WriteRequest, from net.Addr) {
	path, err := s.resolvePath(req.Name)
	if err != nil {
		s.replyError(from, ErrInvalidPacket, err.Error())
		return
	}
	if _, err := os.Stat(path); err == nil {
		s.replyError(from, ErrFileExists, ErrFileExists.String())
		return
	}

	worker, err := transport.NewClient(from, s.cfg, s.transportLog, s.metrics)
	if err != nil {
		s.replyError(from, ErrFailedHandshake, err.Error())
		return
	}
	go s.runWriteWorker(worker, from, path)
}

func (s *Server) handleRead(req ReadRequest, from net.Addr) {
	path, err := s.resolvePath(req.Name)
	if err != nil {
		s.replyError(from, ErrInvalidPacket, err.Error())
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.replyError(from, ErrFileNotExists, ErrFileNotExists.String())
		return
	}

	worker, err := transport.NewClient(from, s.cfg, s.transportLog, s.metrics)
	if err != nil {
		s.replyError(from, ErrFailedHandshake, err.Error())
		return
	}
	go s.runReadWorker(worker, from, path)
}

// runWriteWorker receives an uploaded file from its ephemeral socket,
// generalizing worker.py's WriteWorker.run.
func (s *Server) runWriteWorker(worker *transport.Client, client net.Addr, path string) {
	defer worker.Close()

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		s.applog.Errorf("write worker for %s: %v", client, err)
		return
	}
	defer out.Close()

	ack, err := Encode(AckHandshake{})
	if err != nil {
		s.applog.Errorf("write worker for %s: encode handshake: %v", client, err)
		return
	}
	if err := worker.Send(ack); err != nil {
		s.applog.Errorf("write worker for %s: %v", client, err)
		return
	}

	desegmenter := segment.NewDesegmenter(out)
	for {
		payload := worker.Recv()
		msg, err := Decode(payload)
		if err != nil {
			s.applog.Warningf("write worker for %s: undecodable chunk: %v", client, err)
			continue
		}
		chunk, ok := msg.(FileChunk)
		if !ok {
			s.applog.Warningf("write worker for %s: unexpected message %T", client, msg)
			continue
		}
		if len(chunk.Data) > 0 {
			if err := desegmenter.Write(chunk.Data); err != nil {
				s.applog.Errorf("write worker for %s: %v", client, err)
				return
			}
		}
		if chunk.Final {
			s.applog.Debugf("write worker for %s: transfer complete", client)
			return
		}
	}
}

// runReadWorker sends the requested file from its ephemeral socket,
// generalizing worker.py's ReadWorker.run.
func (s *Server) runReadWorker(worker *transport.Client, client net.Addr, path string) {
	defer worker.Close()

	in, err := os.Open(path)
	if err != nil {
		s.applog.Errorf("read worker for %s: %v", client, err)
		return
	}
	defer in.Close()

	ack, err := Encode(AckHandshake{})
	if err != nil {
		s.applog.Errorf("read worker for %s: encode handshake: %v", client, err)
		return
	}
	if err := worker.Send(ack); err != nil {
		s.applog.Errorf("read worker for %s: %v", client, err)
		return
	}

	seg := segment.NewSegmenter(in, s.chunkSize)
	var seq uint32
	for {
		data, final, err := seg.Next()
		if err != nil {
			s.applog.Errorf("read worker for %s: %v", client, err)
			return
		}
		chunk, err := Encode(FileChunk{Seq: seq, Final: final, Data: data})
		if err != nil {
			s.applog.Errorf("read worker for %s: %v", client, err)
			return
		}
		if err := worker.Send(chunk); err != nil {
			s.applog.Errorf("read worker for %s: %v", client, err)
			return
		}
		seq++
		if final {
			s.applog.Debugf("read worker for %s: transfer complete", client)
			return
		}
	}
}

func (s *Server) replyError(to net.Addr, code ErrorCode, message string) {
	encoded, err := Encode(ErrorReply{Code: code, Message: message})
	if err != nil {
		s.applog.Errorf("encoding error reply to %s: %v", to, err)
		return
	}
	if err := s.transport.SendTo(encoded, to); err != nil {
		s.applog.Errorf("sending error reply to %s: %v", to, err)
	}
}

// resolvePath joins name onto the server root, rejecting any path that
// would escape it.
func (s *Server) resolvePath(name string) (string, error) {
	joined := filepath.Join(s.root, filepath.Clean(string(filepath.Separator)+name))
	rootWithSep := strings.TrimRight(s.root, string(filepath.Separator)) + string(filepath.Separator)
	if !strings.HasPrefix(joined, rootWithSep) {
		return "", fmt.Errorf("fileproto: %q escapes server root", name)
	}
	return joined, nil
}
