package fileproto

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// TagSet registers every application message type with a private CBOR tag
// number, the same pattern server/cborplugin/client.go uses for its own
// Request/Response/Parameters types. Tagging lets Decode recover the
// concrete message type without a separate opcode field on the wire.
var TagSet = cbor.NewTagSet()

func init() {
	register := func(v interface{}, tag uint64) {
		err := TagSet.Add(
			cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired},
			reflect.TypeOf(v), tag)
		if err != nil {
			panic(err)
		}
	}
	// 1501-1509: unassigned per the IANA CBOR tags registry, same range
	// server/cborplugin/client.go draws its own private tags from.
	register(ReadRequest{}, 1501)
	register(WriteRequest{}, 1502)
	register(FileChunk{}, 1503)
	register(ErrorReply{}, 1504)
	register(AckHandshake{}, 1505)
}

var encMode = func() cbor.EncMode {
	m, err := cbor.EncOptions{}.EncModeWithTags(TagSet)
	if err != nil {
		panic(err)
	}
	return m
}()

var decMode = func() cbor.DecMode {
	m, err := cbor.DecOptions{}.DecModeWithTags(TagSet)
	if err != nil {
		panic(err)
	}
	return m
}()

// ErrUnknownMessage is returned by Decode when the CBOR tag on the wire does
// not match any type in TagSet.
var ErrUnknownMessage = fmt.Errorf("fileproto: unrecognized message")

// Encode serializes msg (one of ReadRequest, WriteRequest, FileChunk,
// ErrorReply, or AckHandshake) to its tagged CBOR wire form.
func Encode(msg interface{}) ([]byte, error) {
	return encMode.Marshal(msg)
}

// Decode recovers the concrete message value carried by raw. The caller
// type-switches the result to dispatch on message kind.
func Decode(raw []byte) (interface{}, error) {
	var v interface{}
	if err := decMode.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case ReadRequest, WriteRequest, FileChunk, ErrorReply, AckHandshake:
		return v, nil
	default:
		return nil, ErrUnknownMessage
	}
}

// OpcodeOf reports the Opcode for a decoded message value, for logging and
// metrics that key off message kind.
func OpcodeOf(msg interface{}) Opcode {
	switch msg.(type) {
	case ReadRequest:
		return OpRead
	case WriteRequest:
		return OpWrite
	case FileChunk:
		return OpData
	case AckHandshake:
		return OpAck
	case ErrorReply:
		return OpError
	default:
		return 0
	}
}
