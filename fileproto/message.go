// Package fileproto implements the file transfer application protocol that
// rides on top of a reliable transport.Client/transport.Server pair: read
// and write requests, data chunks, and error replies, framed with CBOR.
//
// It generalizes original_source/src/lib/packet.py's opcode-tagged request
// hierarchy (RRQ/WRQ/DATA/ACK/ERROR) into one Go struct per message kind,
// each registered under its own CBOR tag (see codec.go); the tag, not an
// opcode field, identifies the message on the wire.
package fileproto

// Opcode identifies the kind of an application message. It is not carried
// on the wire; OpcodeOf derives it from a decoded message's type.
type Opcode uint16

const (
	OpRead Opcode = iota + 1
	OpWrite
	OpData
	OpAck
	OpError
)

func (o Opcode) String() string {
	switch o {
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpData:
		return "DATA"
	case OpAck:
		return "ACK"
	case OpError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode enumerates the application-level failure reasons a server can
// report back to a client, mirroring
// original_source/src/lib/constants.py's ERRORCODES namespace.
type ErrorCode uint8

const (
	ErrFileExists ErrorCode = iota + 1
	ErrFileNotExists
	ErrInvalidPacket
	ErrFailedHandshake
)

func (c ErrorCode) String() string {
	switch c {
	case ErrFileExists:
		return "file already exists"
	case ErrFileNotExists:
		return "file does not exist"
	case ErrInvalidPacket:
		return "invalid packet"
	case ErrFailedHandshake:
		return "failed handshake"
	default:
		return "unknown error"
	}
}

// ReadRequest asks the server to send the named file.
type ReadRequest struct {
	Name string
}

// WriteRequest asks the server to accept an upload of the named file.
type WriteRequest struct {
	Name string
}

// FileChunk carries one segment of a file in transit. Final marks the last
// chunk of a transfer so the receiving side knows to stop reading.
type FileChunk struct {
	Seq   uint32
	Final bool
	Data  []byte
}

// AckHandshake is sent by a worker immediately after it is spawned, in
// place of a bare transport ACK, so the client can positively distinguish
// "handshake accepted, now talk to this new address" from an ordinary
// transport-layer acknowledgement.
type AckHandshake struct{}

// ErrorReply reports a failure in place of beginning a transfer.
type ErrorReply struct {
	Code    ErrorCode
	Message string
}
