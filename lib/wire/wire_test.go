package wire

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

func TestWriteSmallList(t *testing.T) {
	w := NewWriter(8)
	w.WriteArrayHeader(3)
	for _, v := range []int64{1, 2, 3} {
		w.WriteInt(v)
	}
	assert.Equal(t, []byte{0x93, 0x01, 0x02, 0x03}, w.Bytes())
}

func TestCountHeaderWidths(t *testing.T) {
	tests := []struct {
		count int
		array []byte
		dict  []byte
	}{
		{0, []byte{0x90}, []byte{0x80}},
		{15, []byte{0x9f}, []byte{0x8f}},
		{16, []byte{0xdc, 0x00, 0x10}, []byte{0xde, 0x00, 0x10}},
		{65535, []byte{0xdc, 0xff, 0xff}, []byte{0xde, 0xff, 0xff}},
		{65536, []byte{0xdd, 0x00, 0x01, 0x00, 0x00}, []byte{0xdf, 0x00, 0x01, 0x00, 0x00}},
	}

	for _, tt := range tests {
		w := NewWriter(8)
		w.WriteArrayHeader(tt.count)
		require.Equal(t, tt.array, w.Bytes(), "array header for %d", tt.count)
		n, err := NewReader(w.Bytes()).ReadArrayHeader()
		require.NoError(t, err)
		assert.Equal(t, tt.count, n)

		w.Reset()
		w.WriteMapHeader(tt.count)
		require.Equal(t, tt.dict, w.Bytes(), "map header for %d", tt.count)
		n, err = NewReader(w.Bytes()).ReadMapHeader()
		require.NoError(t, err)
		assert.Equal(t, tt.count, n)
	}
}

func TestIntegerEncoding(t *testing.T) {
	tests := []struct {
		value int64
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0xcc, 0x80}},
		{256, []byte{0xcd, 0x01, 0x00}},
		{70000, []byte{0xce, 0x00, 0x01, 0x11, 0x70}},
		{-1, []byte{0xff}},
		{-32, []byte{0xe0}},
		{-33, []byte{0xd0, 0xdf}},
		{-129, []byte{0xd1, 0xff, 0x7f}},
		{math.MinInt64, []byte{0xd3, 0x80, 0, 0, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		w := NewWriter(9)
		w.WriteInt(tt.value)
		require.Equal(t, tt.want, w.Bytes(), "encoding of %d", tt.value)

		got, err := NewReader(w.Bytes()).ReadInt()
		require.NoError(t, err)
		assert.Equal(t, tt.value, got)
	}
}

func TestIntegerRangeChecks(t *testing.T) {
	w := NewWriter(9)
	w.WriteUint(math.MaxUint64)
	_, err := NewReader(w.Bytes()).ReadInt()
	assert.True(t, common.IsFormatError(err))

	u, err := NewReader(w.Bytes()).ReadUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), u)

	w.Reset()
	w.WriteInt(-5)
	r := NewReader(w.Bytes())
	_, err = r.ReadUint()
	assert.True(t, common.IsFormatError(err))
	assert.Equal(t, 0, r.Offset(), "a failed read must not consume input")
}

func TestStringAndBinary(t *testing.T) {
	w := NewWriter(64)
	w.WriteString(strings.Repeat("a", 31))
	assert.Equal(t, byte(0xbf), w.Bytes()[0])

	w.Reset()
	w.WriteString(strings.Repeat("b", 32))
	assert.Equal(t, []byte{0xd9, 0x20}, w.Bytes()[:2])
	s, err := NewReader(w.Bytes()).ReadString()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 32), s)

	w.Reset()
	w.WriteBinary([]byte{1, 2, 3})
	assert.Equal(t, []byte{0xc4, 0x03, 1, 2, 3}, w.Bytes())
	b, err := NewReader(w.Bytes()).ReadBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)
}

func TestFloats(t *testing.T) {
	w := NewWriter(16)
	w.WriteFloat32(1.5)
	w.WriteFloat64(-2.25)
	w.WriteInt(7)

	r := NewReader(w.Bytes())
	for _, want := range []float64{1.5, -2.25, 7} {
		got, err := r.ReadFloat()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.True(t, r.Exhausted())
}

// --------------------------------------------------------------------------
// Extension frames
// --------------------------------------------------------------------------

func TestExtFraming(t *testing.T) {
	tests := []struct {
		length int
		header []byte
	}{
		{1, []byte{0xd4, 0x02}},
		{2, []byte{0xd5, 0x02}},
		{3, []byte{0xc7, 0x03, 0x02}},
		{4, []byte{0xd6, 0x02}},
		{8, []byte{0xd7, 0x02}},
		{16, []byte{0xd8, 0x02}},
		{300, []byte{0xc8, 0x01, 0x2c, 0x02}},
	}

	for _, tt := range tests {
		payload := bytes.Repeat([]byte{0xab}, tt.length)
		w := NewWriter(tt.length + 6)
		w.WriteExt(2, payload)
		require.Equal(t, tt.header, w.Bytes()[:len(tt.header)], "header for length %d", tt.length)

		r := NewReader(w.Bytes())
		assert.True(t, r.IsExt())
		code, err := r.PeekExtCode()
		require.NoError(t, err)
		assert.Equal(t, int8(2), code)
		assert.Equal(t, 0, r.Offset())

		code, got, err := r.ReadExt()
		require.NoError(t, err)
		assert.Equal(t, int8(2), code)
		assert.Equal(t, payload, got)
		assert.True(t, r.Exhausted())
	}
}

func TestTimestamp(t *testing.T) {
	times := []time.Time{
		time.Unix(0, 0),
		time.Unix(1700000000, 0),
		time.Unix(1700000000, 123456789),
		time.Unix(-86400, 5),
		time.Date(2600, 1, 1, 0, 0, 0, 1, time.UTC),
	}

	for _, want := range times {
		w := NewWriter(16)
		w.WriteTime(want)
		got, err := NewReader(w.Bytes()).ReadTime()
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "want %v, got %v", want, got)
	}

	w := NewWriter(16)
	w.WriteExt(3, []byte{0, 0, 0, 0})
	_, err := NewReader(w.Bytes()).ReadTime()
	assert.True(t, common.IsFormatError(err))
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

func TestHeaderKindMismatch(t *testing.T) {
	w := NewWriter(4)
	w.WriteArrayHeader(1)
	w.WriteNil()

	r := NewReader(w.Bytes())
	assert.True(t, r.IsArrayHeader())
	assert.False(t, r.IsMapHeader())
	_, err := r.ReadMapHeader()
	assert.True(t, common.IsFormatError(err))

	k, err := r.PeekKind()
	require.NoError(t, err)
	assert.Equal(t, KindArray, k)
	assert.Equal(t, "array header", k.String())
}

func TestInvalidHeaderByte(t *testing.T) {
	_, err := NewReader([]byte{0xc1}).PeekKind()
	assert.True(t, common.IsFormatError(err))

	_, err = ValueLength([]byte{0xc1})
	assert.True(t, common.IsFormatError(err))
}

func TestReaderDepth(t *testing.T) {
	r := NewReader([]byte{0x01})
	r.SetMaxDepth(2)

	require.NoError(t, r.Enter())
	require.NoError(t, r.Enter())
	err := r.Enter()
	assert.True(t, common.IsFormatError(err), "%v", err)
	assert.Equal(t, 2, r.Depth())

	// frames continue at the depth of their parent
	f := r.Frame([]byte{0x02})
	assert.Equal(t, 2, f.Depth())
	assert.True(t, common.IsFormatError(f.Enter()))

	r.Leave()
	require.NoError(t, r.Enter())

	d := NewReader(nil)
	for i := 0; i < DefaultMaxDepth; i++ {
		require.NoError(t, d.Enter())
	}
	assert.True(t, common.IsFormatError(d.Enter()))
}

func TestSubtreeIsBounded(t *testing.T) {
	// [[1, 2], 3]
	in := []byte{0x92, 0x92, 0x01, 0x02, 0x03}
	r := NewReader(in)

	n, err := r.ReadArrayHeader()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	sub, err := r.Subtree()
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Remaining())

	n, err = sub.ReadArrayHeader()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	for i := 0; i < n; i++ {
		_, err := sub.ReadInt()
		require.NoError(t, err)
	}
	assert.True(t, sub.Exhausted())

	// reading on from the subtree must not reach the sibling
	_, err = sub.ReadInt()
	assert.True(t, common.IsTruncationError(err))

	v, err := r.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	assert.True(t, r.Exhausted())
}

func TestSkipNested(t *testing.T) {
	w := NewWriter(32)
	w.WriteMapHeader(2)
	w.WriteString("a")
	w.WriteArrayHeader(2)
	w.WriteInt(1)
	w.WriteString("x")
	w.WriteString("b")
	w.WriteExt(4, []byte{1, 2, 3})
	w.WriteBool(true)

	r := NewReader(w.Bytes())
	require.NoError(t, r.Skip())
	ok, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, r.Exhausted())
}

func TestValueLengthTruncated(t *testing.T) {
	// array header declaring 3 items with only 2 present
	_, err := ValueLength([]byte{0x93, 0x01, 0x02})
	assert.True(t, common.IsTruncationError(err))

	// string header promising more bytes than present
	_, err = ValueLength([]byte{0xa5, 'a', 'b'})
	assert.True(t, common.IsTruncationError(err))

	n, err := ValueLength([]byte{0x93, 0x01, 0x02, 0x03, 0xff})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestTryReadNil(t *testing.T) {
	r := NewReader([]byte{0xc0, 0x01})
	assert.True(t, r.TryReadNil())
	assert.False(t, r.TryReadNil())
	require.Error(t, r.ReadNil())
	assert.Equal(t, 1, r.Remaining())
}

// --------------------------------------------------------------------------
// Stream framing
// --------------------------------------------------------------------------

func TestReadValueFromStream(t *testing.T) {
	w := NewWriter(64)
	w.WriteArrayHeader(3)
	w.WriteInt(1)
	w.WriteInt(2)
	w.WriteInt(3)
	first := len(w.Bytes())
	w.WriteMapHeader(1)
	w.WriteString("key")
	w.WriteBinary([]byte("value"))
	second := len(w.Bytes())
	w.WriteNil()

	all := append([]byte(nil), w.Bytes()...)
	src := bytes.NewReader(all)

	v, err := ReadValue(src)
	require.NoError(t, err)
	assert.Equal(t, all[:first], v)

	v, err = ReadValue(src)
	require.NoError(t, err)
	assert.Equal(t, all[first:second], v)

	v, err = ReadValue(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc0}, v)

	_, err = ReadValue(src)
	assert.Equal(t, io.EOF, err)
}

func TestReadValueTruncatedStream(t *testing.T) {
	_, err := ReadValue(bytes.NewReader([]byte{0x93, 0x01}))
	assert.True(t, common.IsTruncationError(err))

	_, err = ReadValue(bytes.NewReader([]byte{0xdc, 0x00}))
	assert.True(t, common.IsTruncationError(err))
}
