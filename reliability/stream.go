// Package reliability implements the per-peer reliable stream state
// machine: Selective Repeat and Stop-and-Wait collapse into one
// implementation parameterized by window size, exactly as spec.md §4.3
// describes. It is grounded in the katzenpost client's ARQ
// (client2/arq.go — SURB-keyed retransmission map, timer-queue driven
// resend) and its Stream type (stream/stream.go — per-peer read/write
// cursors, window-gated writes), generalized from a mixnet SURB reply
// channel to a plain UDP peer.
//
// Unlike the original Python source (see
// original_source/src/lib/transport/selective_repeat.py), every field
// below lives on the Stream value itself, never in a package-level dict
// shared across every peer — that sharing was a bug in the source, called
// out in spec.md §9, and is corrected here by construction.
package reliability

import (
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/internal/timerqueue"
	"github.com/dstainton-labs/rudp/internal/workerutil"
	"github.com/dstainton-labs/rudp/wire"
)

// Sender transmits an already-encoded packet to the stream's target. The
// owning Transport supplies this; every Sender writes through the
// Transport's single UDP socket, which net.UDPConn makes safe for
// concurrent writers.
type Sender func(encoded []byte) error

// Deliverer hands a fully in-order payload to the owning Transport's
// delivery queue.
type Deliverer func(payload []byte)

// Stream is the per-peer reliable delivery state machine described by
// spec.md §3/§4.3. Exactly one exists per peer address for the lifetime of
// a Transport.
type Stream struct {
	workerutil.Worker

	target net.Addr

	mu                     sync.Mutex
	nextSeq                wire.SequenceNumber
	expectedSeq            wire.SequenceNumber
	outTimers              map[uint16][]byte // live iff present; value is the raw payload, re-encoded as DATA on each resend
	reorderBuffer          map[uint16][]byte
	consecutiveInterrupts  int
	closing                bool
	finishOnce             sync.Once

	windowSlots chan struct{}
	windowSize  int

	timer         time.Duration
	dropThreshold int

	tq      *timerqueue.TimerQueue
	send    Sender
	deliver Deliverer
	log     *log.Logger
	metrics *Metrics
}

// NewStream constructs a Stream for target and starts its retransmission
// scheduler. cfg.WindowSize of 1 yields Stop-and-Wait; >=2 yields Selective
// Repeat — no separate code path, per spec.md §4.3.
func NewStream(target net.Addr, cfg config.Config, send Sender, deliver Deliverer, logger *log.Logger, metrics *Metrics) *Stream {
	windowSize := cfg.WindowSize
	if windowSize < 1 {
		windowSize = 1
	}
	s := &Stream{
		target:        target,
		outTimers:     make(map[uint16][]byte),
		reorderBuffer: make(map[uint16][]byte),
		windowSlots:   make(chan struct{}, windowSize),
		windowSize:    windowSize,
		timer:         cfg.Timer,
		dropThreshold: cfg.DropThreshold,
		send:          send,
		deliver:       deliver,
		log:           logger,
		metrics:       metrics,
	}
	s.tq = timerqueue.NewTimerQueue(s.onTimerFire)
	s.tq.Start()
	return s
}

// Target returns the peer this stream talks to.
func (s *Stream) Target() net.Addr {
	return s.target
}

// Send assigns the next sequence number to payload, starts its
// retransmission timer, and transmits it, blocking if the window is full.
// Per spec.md §5 the window semaphore's acquisition order is the send
// order; a buffered channel gives FIFO-fair acquisition for this purpose.
func (s *Stream) Send(payload []byte) error {
	select {
	case s.windowSlots <- struct{}{}:
	case <-s.HaltCh():
		return ErrStreamClosed
	}

	s.mu.Lock()
	seq := s.nextSeq.Value()
	s.outTimers[seq] = payload
	s.nextSeq.Increase()
	s.mu.Unlock()

	s.tq.Push(deadline(s.timer), seq)
	if s.metrics != nil {
		s.metrics.WindowInFlight.Inc()
	}

	pkt := wire.Data(seq, payload)
	if err := s.send(wire.Encode(pkt)); err != nil {
		return err
	}
	return nil
}

// Close marks the stream as closing. It does not itself cancel timers: the
// retransmission loop observes closing combined with consecutive_interrupts
// >= DROP_THRESHOLD to abandon an in-flight packet, per spec.md §4.3. Any
// Send blocked on a full window is released immediately.
func (s *Stream) Close() {
	s.Halt()

	s.mu.Lock()
	s.closing = true
	drained := len(s.outTimers) == 0
	s.mu.Unlock()

	if drained {
		s.requestFinish()
	}
}

// Wait blocks until the stream's retransmission scheduler has stopped —
// either because every outstanding DATA packet was acknowledged or
// abandoned after DROP_THRESHOLD consecutive interrupts past Close.
func (s *Stream) Wait() {
	s.tq.Wait()
}

// HasUnacked reports whether any DATA packet sent on this stream is still
// awaiting an ACK. Transport.hasUnackedPackets ORs this across every peer.
func (s *Stream) HasUnacked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outTimers) > 0
}

// Handle processes one raw datagram addressed to this stream's peer.
func (s *Stream) Handle(raw []byte) {
	pkt, err := wire.Decode(raw)
	if err != nil {
		if s.metrics != nil {
			s.metrics.InvalidPackets.Inc()
		}
		return
	}

	s.mu.Lock()
	s.consecutiveInterrupts = 0
	s.mu.Unlock()

	switch pkt.Opcode {
	case wire.OpcodeACK:
		s.handleAck(pkt.AckSequence)
	case wire.OpcodeDATA:
		s.handleData(pkt)
	}
}

func (s *Stream) handleAck(seq uint16) {
	s.mu.Lock()
	_, ok := s.outTimers[seq]
	if ok {
		delete(s.outTimers, seq)
	}
	drained := s.closing && len(s.outTimers) == 0
	s.mu.Unlock()

	if !ok {
		// Duplicate or unsolicited ACK; ignore.
		return
	}
	s.releaseWindowSlot()
	if drained {
		s.requestFinish()
	}
}

func (s *Stream) handleData(pkt wire.Packet) {
	if int(pkt.Length) != len(pkt.Payload) {
		if s.metrics != nil {
			s.metrics.LengthMismatches.Inc()
		}
		return
	}

	// Every well-formed DATA gets an ACK, including duplicates — this is
	// what lets the peer's retransmission loop terminate.
	if err := s.send(wire.Encode(wire.Ack(pkt.DataSequence))); err != nil {
		s.log.Errorf("stream %s: failed to ack seq %d: %v", s.target, pkt.DataSequence, err)
	}

	var toDeliver [][]byte
	s.mu.Lock()
	expected := s.expectedSeq.Value()
	switch {
	case pkt.DataSequence == expected:
		toDeliver = append(toDeliver, pkt.Payload)
		s.expectedSeq.Increase()
		for {
			next := s.expectedSeq.Value()
			buffered, ok := s.reorderBuffer[next]
			if !ok {
				break
			}
			delete(s.reorderBuffer, next)
			toDeliver = append(toDeliver, buffered)
			s.expectedSeq.Increase()
		}
	case isAhead(pkt.DataSequence, expected, s.windowSize):
		s.reorderBuffer[pkt.DataSequence] = pkt.Payload
	default:
		// Duplicate of an already-delivered record; the ACK above is all
		// the peer needs.
	}
	s.mu.Unlock()

	for _, payload := range toDeliver {
		s.deliver(payload)
	}
}

// onTimerFire is the retransmission callback: it runs on the stream's
// TimerQueue worker goroutine, so it must never block on Wait()/Stop() —
// only Halt(), which that same goroutine will observe on its next loop turn.
func (s *Stream) onTimerFire(v interface{}) {
	seq := v.(uint16)

	s.mu.Lock()
	payload, ok := s.outTimers[seq]
	if !ok {
		s.mu.Unlock()
		return // Late ACK already handled; nothing to resend.
	}
	s.consecutiveInterrupts++

	if s.closing && s.consecutiveInterrupts >= s.dropThreshold {
		delete(s.outTimers, seq)
		drained := len(s.outTimers) == 0
		s.mu.Unlock()
		s.releaseWindowSlot()
		s.log.Warnf("stream %s: abandoning seq %d after %d consecutive interrupts during close", s.target, seq, s.consecutiveInterrupts)
		if drained {
			s.requestFinish()
		}
		return
	}
	s.mu.Unlock()

	s.tq.Push(deadline(s.timer), seq)
	if s.metrics != nil {
		s.metrics.Retransmissions.Inc()
	}
	if err := s.send(wire.Encode(wire.Data(seq, payload))); err != nil {
		s.log.Errorf("stream %s: resend of seq %d failed: %v", s.target, seq, err)
	}
}

func (s *Stream) releaseWindowSlot() {
	<-s.windowSlots
	if s.metrics != nil {
		s.metrics.WindowInFlight.Dec()
	}
}

// requestFinish asks the TimerQueue worker to stop. It is safe to call from
// the worker goroutine itself (unlike Wait, which blocks for it to exit).
func (s *Stream) requestFinish() {
	s.finishOnce.Do(s.tq.Halt)
}

func deadline(d time.Duration) uint64 {
	return uint64(time.Now().Add(d).UnixNano())
}

// isAhead reports whether s is within the receive window ahead of expected,
// using modular comparison so the check stays correct across 16-bit
// wraparound — spec.md §9's correction of the source's plain ">" compare.
func isAhead(s, expected uint16, windowSize int) bool {
	diff := s - expected // uint16 subtraction wraps mod 2^16
	return diff != 0 && int(diff) < windowSize
}
