package reliability

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/wire"
)

func testConfig(windowSize int) config.Config {
	cfg := config.Default()
	cfg.WindowSize = windowSize
	cfg.Timer = 20 * time.Millisecond
	cfg.DropThreshold = 10
	return cfg
}

type fakeAddr string

func (f fakeAddr) Network() string { return "fake" }
func (f fakeAddr) String() string  { return string(f) }

// recorder collects every encoded packet handed to Sender, and every payload
// handed to Deliverer, guarding both with a mutex since they're invoked from
// multiple goroutines (the timer queue worker included).
type recorder struct {
	mu        sync.Mutex
	sent      [][]byte
	delivered [][]byte
}

func newRecorder() *recorder { return &recorder{} }

func (r *recorder) send(encoded []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(encoded))
	copy(cp, encoded)
	r.sent = append(r.sent, cp)
	return nil
}

func (r *recorder) deliver(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.delivered = append(r.delivered, cp)
}

func (r *recorder) deliveredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delivered)
}

func (r *recorder) deliveredAt(i int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered[i]
}

func newTestStream(windowSize int) (*Stream, *recorder) {
	rec := newRecorder()
	s := NewStream(fakeAddr("peer"), testConfig(windowSize), rec.send, rec.deliver, testLogger(), nil)
	return s, rec
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// Scenario: ordered DATA delivered exactly once, in sequence.
func TestHandleDataInOrderDelivery(t *testing.T) {
	s, rec := newTestStream(5)
	defer s.Close()

	for i := uint16(0); i < 3; i++ {
		s.Handle(wire.Encode(wire.Data(i, []byte{byte(i)})))
	}

	require.Equal(t, 3, rec.deliveredCount())
	for i := 0; i < 3; i++ {
		require.Equal(t, []byte{byte(i)}, rec.deliveredAt(i))
	}
}

// Scenario 3: out-of-order reordering. seq 1..4 arrive before seq 0; nothing
// is delivered until seq 0 arrives, at which point all five flush in order.
func TestOutOfOrderReorderBuffering(t *testing.T) {
	s, rec := newTestStream(5)
	defer s.Close()

	for seq := uint16(1); seq <= 4; seq++ {
		s.Handle(wire.Encode(wire.Data(seq, []byte{byte(seq)})))
	}
	require.Equal(t, 0, rec.deliveredCount(), "nothing should deliver until seq 0 arrives")

	s.Handle(wire.Encode(wire.Data(0, []byte{0})))

	require.Equal(t, 5, rec.deliveredCount())
	for i := 0; i < 5; i++ {
		require.Equal(t, []byte{byte(i)}, rec.deliveredAt(i))
	}
}

// Every well-formed DATA triggers an ACK, including duplicates.
func TestDuplicateDataStillAcked(t *testing.T) {
	s, rec := newTestStream(5)
	defer s.Close()

	pkt := wire.Encode(wire.Data(0, []byte("x")))
	s.Handle(pkt)
	s.Handle(pkt) // duplicate of an already-delivered record

	require.Equal(t, 1, rec.deliveredCount())

	rec.mu.Lock()
	acks := 0
	for _, raw := range rec.sent {
		decoded, err := wire.Decode(raw)
		require.NoError(t, err)
		if decoded.Opcode == wire.OpcodeACK && decoded.AckSequence == 0 {
			acks++
		}
	}
	rec.mu.Unlock()
	require.Equal(t, 2, acks)
}

// A length-mismatched DATA packet is dropped without an ACK.
func TestLengthMismatchDropped(t *testing.T) {
	s, rec := newTestStream(5)
	defer s.Close()

	raw := wire.Encode(wire.Data(0, []byte("abc")))
	raw[4] = 0x00 // corrupt the on-wire declared length (bytes 4:6) to 99
	raw[5] = 99
	s.Handle(raw)

	require.Equal(t, 0, rec.deliveredCount())
	require.Equal(t, 0, len(rec.sent))
}

// Window bound: Stop-and-Wait (WINDOW_SIZE=1) never has more than one
// outstanding DATA packet.
func TestStopAndWaitWindowBound(t *testing.T) {
	s, _ := newTestStream(1)
	defer s.Close()

	done := make(chan struct{})
	go func() {
		require.NoError(t, s.Send([]byte("a")))
		require.NoError(t, s.Send([]byte("b")))
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.True(t, s.HasUnacked())
	require.LessOrEqual(t, len(s.outTimersSnapshot()), 1)

	// Ack seq 0 so the second Send can proceed and the goroutine above exits.
	s.Handle(wire.Encode(wire.Ack(0)))
	<-done
}

func (s *Stream) outTimersSnapshot() map[uint16][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint16][]byte, len(s.outTimers))
	for k, v := range s.outTimers {
		out[k] = v
	}
	return out
}

// ACKs for both packets of a full window (size 2) empty the stream's set of
// unacknowledged DATA.
func TestAckReleasesWindowSlot(t *testing.T) {
	s, _ := newTestStream(2)
	defer s.Close()

	require.NoError(t, s.Send([]byte("one")))
	require.NoError(t, s.Send([]byte("two")))
	require.True(t, s.HasUnacked())

	s.Handle(wire.Encode(wire.Ack(0)))
	s.Handle(wire.Encode(wire.Ack(1)))
	require.False(t, s.HasUnacked())
}

// Close liveness: retransmissions to an unreachable peer abandon once
// DROP_THRESHOLD consecutive interrupts have elapsed after Close, bounding
// Wait() to roughly DROP_THRESHOLD * TIMER.
func TestCloseAbandonsAfterDropThreshold(t *testing.T) {
	cfg := testConfig(5)
	cfg.DropThreshold = 5
	cfg.Timer = 5 * time.Millisecond

	rec := newRecorder()
	s := NewStream(fakeAddr("unreachable"), cfg, rec.send, rec.deliver, testLogger(), nil)

	require.NoError(t, s.Send([]byte("lost")))

	s.Close()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not finish retransmission loop after Close")
	}
	require.False(t, s.HasUnacked())
}

var _ net.Addr = fakeAddr("")
