package wire

import (
	"encoding/binary"
	"io"
	"math"
	"time"
)

// Writer is the byte sink of the wire format. Every Write method appends the
// smallest encoding that can hold the value, as MessagePack requires.
// A Writer is not safe for concurrent use.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer with the given initial capacity
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the bytes written so far. The slice aliases the internal buffer
// until the next write or Reset.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards all written bytes but keeps the allocated buffer
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// WriteTo implements io.WriterTo
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(w.buf)
	return int64(n), err
}

// WriteRaw appends already encoded bytes
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// WriteNil writes the nil token
func (w *Writer) WriteNil() { w.buf = append(w.buf, tagNil) }

// WriteBool writes true or false
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, tagTrue)
	} else {
		w.buf = append(w.buf, tagFalse)
	}
}

// WriteInt writes a signed integer. Non-negative values use the unsigned family,
// so 1 is written as the single byte 0x01 regardless of the Go type it came from.
func (w *Writer) WriteInt(v int64) {
	switch {
	case v >= 0:
		w.WriteUint(uint64(v))
	case v >= minNegFixInt:
		w.buf = append(w.buf, byte(int8(v)))
	case v >= math.MinInt8:
		w.buf = append(w.buf, tagInt8, byte(int8(v)))
	case v >= math.MinInt16:
		w.buf = append(w.buf, tagInt16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(int16(v)))
	case v >= math.MinInt32:
		w.buf = append(w.buf, tagInt32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(int32(v)))
	default:
		w.buf = append(w.buf, tagInt64)
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
	}
}

// WriteUint writes an unsigned integer
func (w *Writer) WriteUint(v uint64) {
	switch {
	case v <= maxFixInt:
		w.buf = append(w.buf, byte(v))
	case v <= math.MaxUint8:
		w.buf = append(w.buf, tagUint8, byte(v))
	case v <= math.MaxUint16:
		w.buf = append(w.buf, tagUint16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
	case v <= math.MaxUint32:
		w.buf = append(w.buf, tagUint32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
	default:
		w.buf = append(w.buf, tagUint64)
		w.buf = binary.BigEndian.AppendUint64(w.buf, v)
	}
}

// WriteFloat32 writes a single precision float
func (w *Writer) WriteFloat32(v float32) {
	w.buf = append(w.buf, tagFloat32)
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// WriteFloat64 writes a double precision float
func (w *Writer) WriteFloat64(v float64) {
	w.buf = append(w.buf, tagFloat64)
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteString writes a UTF-8 string (fixstr, str8, str16 or str32)
func (w *Writer) WriteString(s string) {
	n := len(s)
	switch {
	case n <= maxFixStr:
		w.buf = append(w.buf, fixStrPrefix|byte(n))
	case n <= math.MaxUint8:
		w.buf = append(w.buf, tagStr8, byte(n))
	case n <= math.MaxUint16:
		w.buf = append(w.buf, tagStr16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, tagStr32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
	w.buf = append(w.buf, s...)
}

// WriteBinary writes a byte array (bin8, bin16 or bin32)
func (w *Writer) WriteBinary(b []byte) {
	n := len(b)
	switch {
	case n <= math.MaxUint8:
		w.buf = append(w.buf, tagBin8, byte(n))
	case n <= math.MaxUint16:
		w.buf = append(w.buf, tagBin16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, tagBin32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
	w.buf = append(w.buf, b...)
}

// WriteArrayHeader writes the header of an array holding n items
func (w *Writer) WriteArrayHeader(n int) {
	w.writeCountHeader(n, fixArrPrefix, tagArray16, tagArray32)
}

// WriteMapHeader writes the header of a map holding n key/value pairs
func (w *Writer) WriteMapHeader(n int) {
	w.writeCountHeader(n, fixMapPrefix, tagMap16, tagMap32)
}

func (w *Writer) writeCountHeader(n int, fix, tag16, tag32 byte) {
	switch {
	case n <= maxFixCount:
		w.buf = append(w.buf, fix|byte(n))
	case n <= math.MaxUint16:
		w.buf = append(w.buf, tag16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, tag32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
}

// WriteExtHeader writes the header of an extension frame with a payload of length bytes.
// The payload itself must be written by the caller.
func (w *Writer) WriteExtHeader(code int8, length int) {
	switch length {
	case 1:
		w.buf = append(w.buf, tagFixExt1, byte(code))
	case 2:
		w.buf = append(w.buf, tagFixExt2, byte(code))
	case 4:
		w.buf = append(w.buf, tagFixExt4, byte(code))
	case 8:
		w.buf = append(w.buf, tagFixExt8, byte(code))
	case 16:
		w.buf = append(w.buf, tagFixExt16, byte(code))
	default:
		switch {
		case length <= math.MaxUint8:
			w.buf = append(w.buf, tagExt8, byte(length), byte(code))
		case length <= math.MaxUint16:
			w.buf = append(w.buf, tagExt16)
			w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(length))
			w.buf = append(w.buf, byte(code))
		default:
			w.buf = append(w.buf, tagExt32)
			w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(length))
			w.buf = append(w.buf, byte(code))
		}
	}
}

// WriteExt writes a complete extension frame
func (w *Writer) WriteExt(code int8, payload []byte) {
	w.WriteExtHeader(code, len(payload))
	w.buf = append(w.buf, payload...)
}

// WriteTime writes t as a timestamp extension, using the 32, 64 or 96 bit form
func (w *Writer) WriteTime(t time.Time) {
	sec := t.Unix()
	nsec := int64(t.Nanosecond())
	switch {
	case sec >= 0 && sec>>34 == 0 && nsec == 0 && sec <= math.MaxUint32:
		w.WriteExtHeader(TimestampCode, 4)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(sec))
	case sec >= 0 && sec>>34 == 0:
		w.WriteExtHeader(TimestampCode, 8)
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(nsec)<<34|uint64(sec))
	default:
		w.WriteExtHeader(TimestampCode, 12)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(nsec))
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(sec))
	}
}
