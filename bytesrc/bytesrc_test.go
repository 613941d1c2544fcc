package bytesrc

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.ByteReader) []byte {
	t.Helper()
	var out []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, b)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, []byte("hello"), readAll(t, String("hello")))
}

func TestBytes(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 3}, readAll(t, Bytes([]byte{1, 2, 3})))
}

func TestFileSourceAndSink(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "out.txt")

	sink, err := CreateFile(name)
	require.NoError(t, err)
	_, err = sink.Write([]byte("round trip"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	src, err := OpenFile(name)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, []byte("round trip"), readAll(t, src))

	_, err = os.Stat(name)
	require.NoError(t, err)
}
