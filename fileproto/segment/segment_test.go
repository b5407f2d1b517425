package segment

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmenterExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 20)
	seg := NewSegmenter(bytes.NewReader(data), 10)

	chunk1, final1, err := seg.Next()
	require.NoError(t, err)
	require.Len(t, chunk1, 10)
	require.False(t, final1)

	chunk2, final2, err := seg.Next()
	require.NoError(t, err)
	require.Len(t, chunk2, 10)
	require.True(t, final2, "last exact-sized chunk must be marked final, no trailing empty chunk")
}

func TestSegmenterPartialFinalChunk(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 25)
	seg := NewSegmenter(bytes.NewReader(data), 10)

	var got []byte
	for {
		chunk, final, err := seg.Next()
		require.NoError(t, err)
		got = append(got, chunk...)
		if final {
			require.Len(t, chunk, 5)
			break
		}
	}
	require.Equal(t, data, got)
}

func TestDesegmenterReassembles(t *testing.T) {
	var buf bytes.Buffer
	d := NewDesegmenter(&buf)
	require.NoError(t, d.Write([]byte("abc")))
	require.NoError(t, d.Write([]byte("def")))
	require.Equal(t, "abcdef", buf.String())
}
