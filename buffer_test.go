package netcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferAppendGrowsGeometrically(t *testing.T) {
	b := NewBuffer(2)
	require.Equal(t, 2, b.Capacity())

	b.Append([]byte("ab"))
	require.Equal(t, 2, b.Size())
	require.Equal(t, 2, b.Capacity())

	b.Append([]byte("c"))
	require.Equal(t, 3, b.Size())
	require.Equal(t, 4, b.Capacity(), "capacity must double, not grow by exactly what's needed")
	require.Equal(t, "abc", string(b.Bytes()))
}

func TestBufferClearRetainsCapacity(t *testing.T) {
	b := NewBuffer(0)
	b.Append([]byte("hello"))
	cap1 := b.Capacity()
	b.Clear()
	require.Equal(t, 0, b.Size())
	require.Equal(t, cap1, b.Capacity())
}

func TestBufferResizeTruncatesAndZeroFills(t *testing.T) {
	b := NewBuffer(0)
	b.Append([]byte("hello world"))
	b.Resize(5)
	require.Equal(t, "hello", string(b.Bytes()))

	b.Resize(8)
	require.Equal(t, 8, b.Size())
	require.Equal(t, byte(0), b.At(5))
	require.Equal(t, byte(0), b.At(7))
}

func TestBufferExtractString(t *testing.T) {
	b := NewBuffer(0)
	b.AppendString("GET /x HTTP/1.1\r\n")
	require.Equal(t, "GET", b.ExtractString(0, 3))
	require.Equal(t, "/x", b.ExtractString(4, 2))
}
