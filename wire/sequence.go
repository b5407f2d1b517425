package wire

import "math"

// MaxSequence is the largest representable SequenceNumber value; Increase
// wraps back to 0 past this point.
const MaxSequence = math.MaxUint16

// SequenceNumber is a wrapping 16-bit counter used for both the sender's
// next_seq and the receiver's expected_seq cursors of a ReliableStream.
//
// Comparisons between two SequenceNumbers that are not known to be within
// WINDOW_SIZE of each other are ambiguous across wraparound; this type only
// exposes the primitives (Value, Increase) the spec calls natural integer
// comparison safe. Window-relative ordering ("is s ahead of expected") is
// computed with modular arithmetic by the reliability package, not here.
type SequenceNumber struct {
	value uint16
}

// Value returns the current sequence number.
func (s SequenceNumber) Value() uint16 {
	return s.value
}

// Increase advances the counter by one, wrapping to 0 past MaxSequence.
func (s *SequenceNumber) Increase() {
	if s.value == MaxSequence {
		s.value = 0
		return
	}
	s.value++
}
