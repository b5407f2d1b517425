// Package segment splits a file into fixed-size chunks for transmission and
// reassembles them on receipt, generalizing
// original_source/src/lib/segmentation.py's Segmenter/Desegmenter pair from
// a plain byte-count cursor to the FileChunk-aware reader/writer pair
// fileproto.Upload and fileproto.Download drive.
package segment

import (
	"bufio"
	"io"
)

// DefaultChunkSize is the maximum payload carried by one FileChunk, per
// spec.md §6.
const DefaultChunkSize = 4000

// Segmenter reads a file in chunkSize pieces (DefaultChunkSize unless
// NewSegmenter is given another size), reporting the final piece so the
// caller can mark its last FileChunk.
type Segmenter struct {
	r         *bufio.Reader
	chunkSize int
}

// NewSegmenter wraps r, reading chunkSize bytes at a time. A chunkSize <= 0
// uses DefaultChunkSize.
func NewSegmenter(r io.Reader, chunkSize int) *Segmenter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Segmenter{r: bufio.NewReaderSize(r, chunkSize), chunkSize: chunkSize}
}

// Next reads the next chunk. final is true when this is the last chunk of
// the stream: a full chunk is final when no byte follows it, so a file whose
// size is an exact multiple of chunkSize ends on a full final chunk with no
// trailing empty chunk. An empty stream yields one zero-length final chunk.
func (s *Segmenter) Next() (data []byte, final bool, err error) {
	buf := make([]byte, s.chunkSize)
	n, rerr := io.ReadFull(s.r, buf)
	switch rerr {
	case nil:
		_, peekErr := s.r.Peek(1)
		return buf[:n], peekErr == io.EOF, nil
	case io.ErrUnexpectedEOF, io.EOF:
		return buf[:n], true, nil
	default:
		return nil, false, rerr
	}
}

// Desegmenter reassembles FileChunks into a file in order of arrival.
// Ordering is the caller's responsibility — fileproto.Download and the
// server's write worker only ever call Write with payloads the reliability
// layer has already delivered in order.
type Desegmenter struct {
	w io.Writer
}

// NewDesegmenter wraps w, which receives each chunk's bytes in order.
func NewDesegmenter(w io.Writer) *Desegmenter {
	return &Desegmenter{w: w}
}

// Write appends data to the reassembled file.
func (d *Desegmenter) Write(data []byte) error {
	_, err := d.w.Write(data)
	return err
}
