// Package wire implements the transport packet codec: the tagged ACK/DATA
// wire format that rides directly on UDP datagrams. It replaces the source
// system's class-per-opcode hierarchy (Packet.decode dispatching to
// ReadRequestPacket / DataPacket / AckPacket subclasses via class_for_opcode)
// with a single tagged sum type and a decode function that switches on the
// opcode — see original_source/src/lib/packet.py for the pattern being
// generalized away from.
package wire

import (
	"encoding/binary"
	"errors"
)

// Opcode identifies the kind of TransportPacket on the wire.
type Opcode uint16

const (
	OpcodeACK  Opcode = 1
	OpcodeDATA Opcode = 2
)

// ErrInvalidPacket is returned by Decode for any datagram that is too short,
// carries an unrecognized opcode, or (for ACK) has the wrong length. Per the
// transport's error taxonomy this is never escalated to a caller; it is a
// signal to silently drop the datagram.
var ErrInvalidPacket = errors.New("wire: invalid packet")

// Packet is a decoded transport packet: exactly one of Ack or Data is
// populated, discriminated by Opcode.
type Packet struct {
	Opcode Opcode

	// Ack fields (Opcode == OpcodeACK)
	AckSequence uint16

	// Data fields (Opcode == OpcodeDATA)
	DataSequence uint16
	Length       uint16
	Payload      []byte
}

// Ack builds an ACK packet for the given sequence.
func Ack(sequence uint16) Packet {
	return Packet{Opcode: OpcodeACK, AckSequence: sequence}
}

// Data builds a DATA packet carrying payload at the given sequence. Length
// is always derived from len(payload), never trusted from a caller.
func Data(sequence uint16, payload []byte) Packet {
	return Packet{
		Opcode:       OpcodeDATA,
		DataSequence: sequence,
		Length:       uint16(len(payload)),
		Payload:      payload,
	}
}

// Encode serializes p to its wire representation.
//
//	ACK:  opcode(2) sequence(2)                   -> 4 bytes
//	DATA: opcode(2) sequence(2) length(2) payload  -> 6+len(payload) bytes
func Encode(p Packet) []byte {
	switch p.Opcode {
	case OpcodeACK:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], uint16(OpcodeACK))
		binary.BigEndian.PutUint16(buf[2:4], p.AckSequence)
		return buf
	case OpcodeDATA:
		length := uint16(len(p.Payload))
		buf := make([]byte, 6+len(p.Payload))
		binary.BigEndian.PutUint16(buf[0:2], uint16(OpcodeDATA))
		binary.BigEndian.PutUint16(buf[2:4], p.DataSequence)
		binary.BigEndian.PutUint16(buf[4:6], length)
		copy(buf[6:], p.Payload)
		return buf
	default:
		panic("wire: Encode called with unknown opcode")
	}
}

// Decode parses a wire datagram into a Packet. It never validates
// Length == len(Payload); callers (reliability.Stream.Handle) do that and drop
// on mismatch, per the transport's error taxonomy.
func Decode(raw []byte) (Packet, error) {
	if len(raw) < 2 {
		return Packet{}, ErrInvalidPacket
	}
	opcode := Opcode(binary.BigEndian.Uint16(raw[0:2]))
	switch opcode {
	case OpcodeACK:
		if len(raw) != 4 {
			return Packet{}, ErrInvalidPacket
		}
		return Packet{
			Opcode:      OpcodeACK,
			AckSequence: binary.BigEndian.Uint16(raw[2:4]),
		}, nil
	case OpcodeDATA:
		if len(raw) < 6 {
			return Packet{}, ErrInvalidPacket
		}
		seq := binary.BigEndian.Uint16(raw[2:4])
		length := binary.BigEndian.Uint16(raw[4:6])
		payload := raw[6:]
		out := make([]byte, len(payload))
		copy(out, payload)
		return Packet{
			Opcode:       OpcodeDATA,
			DataSequence: seq,
			Length:       length,
			Payload:      out,
		}, nil
	default:
		return Packet{}, ErrInvalidPacket
	}
}
