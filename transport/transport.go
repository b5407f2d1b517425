package transport

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	channels "gopkg.in/eapache/channels.v1"

	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/internal/workerutil"
	"github.com/dstainton-labs/rudp/reliability"
)

// socketReadTimeout bounds how long the reader goroutine blocks on a single
// recv call so it can periodically re-check online/has_unacked_packets, per
// spec.md §4.4. It is not surfaced to callers.
const socketReadTimeout = 1 * time.Second

// LossFilter is an injectable testability hook consulted by the reader loop
// before a datagram is dispatched to its stream. Returning true drops the
// datagram as if it never arrived. This replaces the source's inline
// `while random() < p: recvfrom()` loop (see
// original_source/src/lib/transport/selective_repeat.py's read_thread) with
// a pluggable filter that production code leaves nil, per spec.md §9.
type LossFilter func(from net.Addr, payload []byte) bool

// record is one delivered (payload, peer) pair, in the shape spec.md §3
// describes for recv_queue.
type record struct {
	payload []byte
	from    net.Addr
}

// Transport owns a single UDP endpoint, lazily creates one reliability.Stream
// per peer, and demultiplexes inbound datagrams to the right stream. It is
// the connectionless, per-peer, ordered, at-most-once delivery service
// spec.md §1 describes.
type Transport struct {
	workerutil.Worker

	cfg     config.Config
	log     *log.Logger
	metrics *reliability.Metrics

	conn *net.UDPConn

	streamsMu sync.Mutex
	streams   map[string]*reliability.Stream

	recvQueue *channels.InfiniteChannel

	onlineMu sync.Mutex
	online   bool

	lossFilter LossFilter
}

// New constructs a Transport over an unbound UDP socket (the client case).
// Call Bind instead for the server case.
func New(cfg config.Config, logger *log.Logger, metrics *reliability.Metrics) (*Transport, error) {
	return newTransport(nil, cfg, logger, metrics)
}

// Bind constructs a Transport whose UDP socket is bound to addr (the server
// case — spec.md §4.4's bind(address)).
func Bind(addr *net.UDPAddr, cfg config.Config, logger *log.Logger, metrics *reliability.Metrics) (*Transport, error) {
	return newTransport(addr, cfg, logger, metrics)
}

func newTransport(addr *net.UDPAddr, cfg config.Config, logger *log.Logger, metrics *reliability.Metrics) (*Transport, error) {
	if addr == nil {
		addr = &net.UDPAddr{IP: net.IPv4zero, Port: 0}
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, &SocketError{Err: err}
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "rudp/transport"})
	}

	t := &Transport{
		cfg:       cfg,
		log:       logger,
		metrics:   metrics,
		conn:      conn,
		streams:   make(map[string]*reliability.Stream),
		recvQueue: channels.NewInfiniteChannel(),
		online:    true,
	}
	t.Go(t.readLoop)
	return t, nil
}

// LocalAddr returns the transport's local UDP address.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// SetLossFilter installs (or clears, with nil) an injectable datagram drop
// filter. Testability hook only; production code leaves it unset.
func (t *Transport) SetLossFilter(f LossFilter) {
	t.onlineMu.Lock()
	defer t.onlineMu.Unlock()
	t.lossFilter = f
}

// SendTo sends data reliably to peer, lazily creating its stream on first
// use. It blocks if that peer's send window is full.
func (t *Transport) SendTo(data []byte, peer net.Addr) error {
	if peer == nil {
		return &InvalidAddressError{}
	}
	if len(data) == 0 {
		return &NullDataError{}
	}
	s := t.streamFor(peer)
	return s.Send(data)
}

// RecvFrom blocks until a record has been delivered (ordered per source
// peer) and returns it.
func (t *Transport) RecvFrom() ([]byte, net.Addr) {
	item := <-t.recvQueue.Out()
	rec := item.(record)
	return rec.payload, rec.from
}

// streamFor returns the existing stream for peer or atomically creates one.
// This is the "get-or-insert" critical section spec.md §4.4 requires to
// make the lazy-insert path race-free between concurrent first sends.
func (t *Transport) streamFor(peer net.Addr) *reliability.Stream {
	key := peer.String()

	t.streamsMu.Lock()
	defer t.streamsMu.Unlock()

	if s, ok := t.streams[key]; ok {
		return s
	}

	s := reliability.NewStream(peer, t.cfg, t.writeTo(peer), t.deliver(peer), t.log, t.metrics)
	t.streams[key] = s
	return s
}

// writeTo returns a reliability.Sender that writes an already-encoded packet
// to peer. All writes share the transport's single UDP handle; net.UDPConn
// is itself safe for concurrent use, so no additional lock is required here
// beyond what the OS socket already serializes (spec.md §3's socket_lock).
func (t *Transport) writeTo(peer net.Addr) reliability.Sender {
	return func(encoded []byte) error {
		_, err := t.conn.WriteTo(encoded, peer)
		return err
	}
}

// deliver returns a reliability.Deliverer that enqueues a payload into the
// transport-level delivery queue tagged with peer.
func (t *Transport) deliver(peer net.Addr) reliability.Deliverer {
	return func(payload []byte) {
		t.recvQueue.In() <- record{payload: payload, from: peer}
	}
}

// readLoop is the background reader task described by spec.md §4.4: it
// loops while online || hasUnackedPackets(), blocking on socket reads with a
// short timeout so it can periodically re-check that condition.
func (t *Transport) readLoop() {
	buf := make([]byte, t.cfg.Bufsize)
	for {
		if !t.isOnline() && !t.hasUnackedPackets() {
			return
		}

		t.conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !t.isOnline() {
				return
			}
			t.log.Errorf("transport: socket read error: %v", err)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		t.onlineMu.Lock()
		filter := t.lossFilter
		t.onlineMu.Unlock()
		if filter != nil && filter(addr, payload) {
			continue
		}

		s := t.streamFor(addr)
		s.Handle(payload)
	}
}

func (t *Transport) isOnline() bool {
	t.onlineMu.Lock()
	defer t.onlineMu.Unlock()
	return t.online
}

// hasUnackedPackets reports whether any stream still has DATA outstanding.
// The reader loop keeps running after Close so those in-flight sends can
// complete, per spec.md §4.4.
func (t *Transport) hasUnackedPackets() bool {
	t.streamsMu.Lock()
	defer t.streamsMu.Unlock()
	for _, s := range t.streams {
		if s.HasUnacked() {
			return true
		}
	}
	return false
}

// Close stops accepting new work, primes every stream to abandon in-flight
// retransmissions once DROP_THRESHOLD is crossed, joins the reader task, and
// releases the socket. No new sends may be initiated once Close has begun
// (caller contract; not enforced internally), per spec.md §4.4.
func (t *Transport) Close() error {
	t.onlineMu.Lock()
	t.online = false
	t.onlineMu.Unlock()

	t.streamsMu.Lock()
	streams := make([]*reliability.Stream, 0, len(t.streams))
	for _, s := range t.streams {
		streams = append(streams, s)
	}
	t.streamsMu.Unlock()

	for _, s := range streams {
		s.Close()
	}
	for _, s := range streams {
		s.Wait()
	}

	// Every stream is drained or abandoned by now; wake the reader from its
	// blocking read so it sees its exit condition without waiting out
	// socketReadTimeout.
	t.conn.SetReadDeadline(time.Now())
	t.Wait()

	if err := t.conn.Close(); err != nil {
		return &SocketError{Err: err}
	}
	return nil
}
