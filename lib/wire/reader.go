package wire

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/ValentinKolb/dPack/lib/common"
)

// Reader is the decode cursor of the wire format. It reads from an in-memory
// buffer and never looks past its end, which makes a Reader returned by Subtree
// a strict bound for one nested value.
// A Reader is not safe for concurrent use.
type Reader struct {
	buf []byte
	pos int

	depth    int
	maxDepth int
}

// DefaultMaxDepth is the nesting limit of a Reader without SetMaxDepth
const DefaultMaxDepth = 512

// NewReader creates a Reader over b. b is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// SetMaxDepth sets how deep Enter may nest. n <= 0 restores DefaultMaxDepth.
func (r *Reader) SetMaxDepth(n int) { r.maxDepth = n }

// Enter records that the caller descends into a nested value (the items of an array
// or map, the payload of an extension frame). Past the depth limit it fails with a
// format error and the depth is left unchanged. Every successful Enter must be
// matched by a Leave.
func (r *Reader) Enter() error {
	limit := r.maxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	if r.depth >= limit {
		return common.NewFormatError("dpack: input nested deeper than %d levels at offset %d", limit, r.pos)
	}
	r.depth++
	return nil
}

// Leave undoes one Enter
func (r *Reader) Leave() { r.depth-- }

// Depth returns the current nesting depth
func (r *Reader) Depth() int { return r.depth }

// Frame returns a Reader over payload, typically the data of an extension frame read
// from r. It starts at the depth of r and has the same limit.
func (r *Reader) Frame(payload []byte) *Reader {
	return &Reader{buf: payload, depth: r.depth, maxDepth: r.maxDepth}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Exhausted reports whether all bytes have been read
func (r *Reader) Exhausted() bool { return r.pos >= len(r.buf) }

// Offset returns the number of bytes read so far
func (r *Reader) Offset() int { return r.pos }

// need makes sure n more bytes can be read
func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return common.NewShortBufferError(n, r.Remaining())
	}
	return nil
}

// --------------------------------------------------------------------------
// Peeking
// --------------------------------------------------------------------------

// PeekKind returns the kind of the next token without consuming it
func (r *Reader) PeekKind() (Kind, error) {
	if err := r.need(1); err != nil {
		return KindInvalid, err
	}
	k := kindOf(r.buf[r.pos])
	if k == KindInvalid {
		return k, common.NewFormatError("dpack: invalid header byte 0x%02x at offset %d", r.buf[r.pos], r.pos)
	}
	return k, nil
}

func (r *Reader) peekIs(k Kind) bool {
	got, err := r.PeekKind()
	return err == nil && got == k
}

// IsArrayHeader reports whether the next token is an array header
func (r *Reader) IsArrayHeader() bool { return r.peekIs(KindArray) }

// IsMapHeader reports whether the next token is a map header
func (r *Reader) IsMapHeader() bool { return r.peekIs(KindMap) }

// IsNil reports whether the next token is nil
func (r *Reader) IsNil() bool { return r.peekIs(KindNil) }

// IsExt reports whether the next token is an extension frame
func (r *Reader) IsExt() bool { return r.peekIs(KindExt) }

// TryReadNil consumes the next token if it is nil and reports whether it did
func (r *Reader) TryReadNil() bool {
	if r.IsNil() {
		r.pos++
		return true
	}
	return false
}

// unexpected creates the format error for a token of the wrong kind
func (r *Reader) unexpected(want string) error {
	k, err := r.PeekKind()
	if err != nil {
		return err
	}
	return common.NewFormatError("dpack: expected %s, found %s at offset %d", want, k, r.pos)
}

// --------------------------------------------------------------------------
// Scalars
// --------------------------------------------------------------------------

// ReadNil consumes a nil token
func (r *Reader) ReadNil() error {
	if !r.TryReadNil() {
		return r.unexpected("nil")
	}
	return nil
}

// ReadBool reads a boolean
func (r *Reader) ReadBool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	switch r.buf[r.pos] {
	case tagTrue:
		r.pos++
		return true, nil
	case tagFalse:
		r.pos++
		return false, nil
	default:
		return false, r.unexpected("bool")
	}
}

// readRawInt reads any integer token. It returns the value as uint64 and whether
// it is a negative number (in which case the bits hold an int64).
func (r *Reader) readRawInt() (bits uint64, negative bool, err error) {
	if err := r.need(1); err != nil {
		return 0, false, err
	}
	tag := r.buf[r.pos]
	switch {
	case tag <= posFixIntMax:
		r.pos++
		return uint64(tag), false, nil
	case tag >= negFixIntMin:
		r.pos++
		return uint64(int64(int8(tag))), true, nil
	}

	var size int
	switch tag {
	case tagUint8, tagInt8:
		size = 1
	case tagUint16, tagInt16:
		size = 2
	case tagUint32, tagInt32:
		size = 4
	case tagUint64, tagInt64:
		size = 8
	default:
		return 0, false, r.unexpected("integer")
	}
	if err := r.need(1 + size); err != nil {
		return 0, false, err
	}
	p := r.buf[r.pos+1 : r.pos+1+size]
	r.pos += 1 + size

	switch tag {
	case tagUint8:
		return uint64(p[0]), false, nil
	case tagUint16:
		return uint64(binary.BigEndian.Uint16(p)), false, nil
	case tagUint32:
		return uint64(binary.BigEndian.Uint32(p)), false, nil
	case tagUint64:
		return binary.BigEndian.Uint64(p), false, nil
	case tagInt8:
		v := int64(int8(p[0]))
		return uint64(v), v < 0, nil
	case tagInt16:
		v := int64(int16(binary.BigEndian.Uint16(p)))
		return uint64(v), v < 0, nil
	case tagInt32:
		v := int64(int32(binary.BigEndian.Uint32(p)))
		return uint64(v), v < 0, nil
	default:
		v := int64(binary.BigEndian.Uint64(p))
		return uint64(v), v < 0, nil
	}
}

// ReadInt reads any integer token that fits into an int64
func (r *Reader) ReadInt() (int64, error) {
	start := r.pos
	bits, negative, err := r.readRawInt()
	if err != nil {
		return 0, err
	}
	if !negative && bits > math.MaxInt64 {
		r.pos = start
		return 0, common.NewFormatError("dpack: integer %d overflows int64 at offset %d", bits, start)
	}
	return int64(bits), nil
}

// ReadUint reads any non-negative integer token
func (r *Reader) ReadUint() (uint64, error) {
	start := r.pos
	bits, negative, err := r.readRawInt()
	if err != nil {
		return 0, err
	}
	if negative {
		r.pos = start
		return 0, common.NewFormatError("dpack: negative integer %d for unsigned value at offset %d", int64(bits), start)
	}
	return bits, nil
}

// ReadFloat reads a float32 or float64 token as float64. Integer tokens are
// accepted as well, since many encoders write integral floats as integers.
func (r *Reader) ReadFloat() (float64, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	switch r.buf[r.pos] {
	case tagFloat32:
		if err := r.need(5); err != nil {
			return 0, err
		}
		v := math.Float32frombits(binary.BigEndian.Uint32(r.buf[r.pos+1:]))
		r.pos += 5
		return float64(v), nil
	case tagFloat64:
		if err := r.need(9); err != nil {
			return 0, err
		}
		v := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.pos+1:]))
		r.pos += 9
		return v, nil
	}
	switch kindOf(r.buf[r.pos]) {
	case KindInt, KindUint:
		bits, negative, err := r.readRawInt()
		if err != nil {
			return 0, err
		}
		if negative {
			return float64(int64(bits)), nil
		}
		return float64(bits), nil
	default:
		return 0, r.unexpected("float")
	}
}

// readLength reads a length prefixed header (str or bin family) and returns the payload length
func (r *Reader) readLength(want string) (int, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	tag := r.buf[r.pos]
	if tag&0xe0 == fixStrPrefix {
		r.pos++
		return int(tag & 0x1f), nil
	}
	switch tag {
	case tagStr8, tagBin8:
		if err := r.need(2); err != nil {
			return 0, err
		}
		n := int(r.buf[r.pos+1])
		r.pos += 2
		return n, nil
	case tagStr16, tagBin16:
		if err := r.need(3); err != nil {
			return 0, err
		}
		n := int(binary.BigEndian.Uint16(r.buf[r.pos+1:]))
		r.pos += 3
		return n, nil
	case tagStr32, tagBin32:
		if err := r.need(5); err != nil {
			return 0, err
		}
		n := int(binary.BigEndian.Uint32(r.buf[r.pos+1:]))
		r.pos += 5
		return n, nil
	}
	return 0, r.unexpected(want)
}

// readPayload reads a str or bin token and returns its bytes without copying
func (r *Reader) readPayload(want string) ([]byte, error) {
	start := r.pos
	n, err := r.readLength(want)
	if err != nil {
		return nil, err
	}
	if err := r.need(n); err != nil {
		r.pos = start
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadString reads a string. Binary tokens are accepted as raw strings.
func (r *Reader) ReadString() (string, error) {
	b, err := r.readPayload("string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBinary reads a byte array. String tokens are accepted as raw bytes.
// The returned slice is a copy.
func (r *Reader) ReadBinary() ([]byte, error) {
	b, err := r.readPayload("binary")
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// --------------------------------------------------------------------------
// Headers
// --------------------------------------------------------------------------

func (r *Reader) readCount(fix, tag16, tag32 byte, want string) (int, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	tag := r.buf[r.pos]
	switch {
	case tag&0xf0 == fix:
		r.pos++
		return int(tag & 0x0f), nil
	case tag == tag16:
		if err := r.need(3); err != nil {
			return 0, err
		}
		n := int(binary.BigEndian.Uint16(r.buf[r.pos+1:]))
		r.pos += 3
		return n, nil
	case tag == tag32:
		if err := r.need(5); err != nil {
			return 0, err
		}
		n := int(binary.BigEndian.Uint32(r.buf[r.pos+1:]))
		r.pos += 5
		return n, nil
	default:
		return 0, r.unexpected(want)
	}
}

// ReadArrayHeader reads an array header and returns the declared item count.
// It does not check that the input actually holds that many items.
func (r *Reader) ReadArrayHeader() (int, error) {
	return r.readCount(fixArrPrefix, tagArray16, tagArray32, "array header")
}

// ReadMapHeader reads a map header and returns the declared pair count.
// It does not check that the input actually holds that many pairs.
func (r *Reader) ReadMapHeader() (int, error) {
	return r.readCount(fixMapPrefix, tagMap16, tagMap32, "map header")
}

// ReadExtHeader reads the header of an extension frame and returns its type code and
// payload length. The payload must be consumed by the caller.
func (r *Reader) ReadExtHeader() (code int8, length int, err error) {
	if err := r.need(1); err != nil {
		return 0, 0, err
	}
	tag := r.buf[r.pos]
	if kindOf(tag) != KindExt {
		return 0, 0, r.unexpected("extension")
	}
	hl, err := headerLen(tag)
	if err != nil {
		return 0, 0, err
	}
	if err := r.need(hl); err != nil {
		return 0, 0, err
	}
	hdr := r.buf[r.pos : r.pos+hl]
	length, _ = payloadAndChildren(hdr)
	code = int8(hdr[hl-1])
	r.pos += hl
	return code, length, nil
}

// PeekExtCode returns the type code of the next extension frame without consuming it
func (r *Reader) PeekExtCode() (int8, error) {
	c := *r
	code, _, err := c.ReadExtHeader()
	return code, err
}

// ReadExt reads a complete extension frame. The payload aliases the input buffer.
func (r *Reader) ReadExt() (int8, []byte, error) {
	start := r.pos
	code, length, err := r.ReadExtHeader()
	if err != nil {
		return 0, nil, err
	}
	if err := r.need(length); err != nil {
		r.pos = start
		return 0, nil, err
	}
	payload := r.buf[r.pos : r.pos+length]
	r.pos += length
	return code, payload, nil
}

// ReadTime reads a timestamp extension
func (r *Reader) ReadTime() (time.Time, error) {
	start := r.pos
	code, payload, err := r.ReadExt()
	if err != nil {
		return time.Time{}, err
	}
	if code != TimestampCode {
		r.pos = start
		return time.Time{}, common.NewFormatError("dpack: expected timestamp extension, found type code %d", code)
	}
	switch len(payload) {
	case 4:
		return time.Unix(int64(binary.BigEndian.Uint32(payload)), 0).UTC(), nil
	case 8:
		v := binary.BigEndian.Uint64(payload)
		return time.Unix(int64(v&0x00000003ffffffff), int64(v>>34)).UTC(), nil
	case 12:
		nsec := binary.BigEndian.Uint32(payload[:4])
		sec := int64(binary.BigEndian.Uint64(payload[4:]))
		return time.Unix(sec, int64(nsec)).UTC(), nil
	default:
		r.pos = start
		return time.Time{}, common.NewFormatError("dpack: invalid timestamp length %d", len(payload))
	}
}

// --------------------------------------------------------------------------
// Nested values
// --------------------------------------------------------------------------

// ReadRawValue returns the encoded bytes of the next complete value and consumes them
func (r *Reader) ReadRawValue() ([]byte, error) {
	n, err := ValueLength(r.buf[r.pos:])
	if err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip consumes the next complete value, including everything nested in it
func (r *Reader) Skip() error {
	_, err := r.ReadRawValue()
	return err
}

// Subtree returns a Reader bounded to exactly the next complete value and advances
// r past it. Whatever the caller does with the returned Reader, it cannot consume
// bytes that belong to a sibling of that value.
func (r *Reader) Subtree() (*Reader, error) {
	b, err := r.ReadRawValue()
	if err != nil {
		return nil, err
	}
	sub := r.Frame(b[:len(b):len(b)])
	return sub, nil
}
