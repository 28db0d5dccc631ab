package wire

import (
	"encoding/binary"

	"github.com/ValentinKolb/dPack/lib/common"
)

// --------------------------------------------------------------------------
// MessagePack header bytes
// --------------------------------------------------------------------------

const (
	posFixIntMax byte = 0x7f
	fixMapPrefix byte = 0x80
	fixArrPrefix byte = 0x90
	fixStrPrefix byte = 0xa0
	negFixIntMin byte = 0xe0

	tagNil      byte = 0xc0
	tagNeverUse byte = 0xc1
	tagFalse    byte = 0xc2
	tagTrue     byte = 0xc3
	tagBin8     byte = 0xc4
	tagBin16    byte = 0xc5
	tagBin32    byte = 0xc6
	tagExt8     byte = 0xc7
	tagExt16    byte = 0xc8
	tagExt32    byte = 0xc9
	tagFloat32  byte = 0xca
	tagFloat64  byte = 0xcb
	tagUint8    byte = 0xcc
	tagUint16   byte = 0xcd
	tagUint32   byte = 0xce
	tagUint64   byte = 0xcf
	tagInt8     byte = 0xd0
	tagInt16    byte = 0xd1
	tagInt32    byte = 0xd2
	tagInt64    byte = 0xd3
	tagFixExt1  byte = 0xd4
	tagFixExt2  byte = 0xd5
	tagFixExt4  byte = 0xd6
	tagFixExt8  byte = 0xd7
	tagFixExt16 byte = 0xd8
	tagStr8     byte = 0xd9
	tagStr16    byte = 0xda
	tagStr32    byte = 0xdb
	tagArray16  byte = 0xdc
	tagArray32  byte = 0xdd
	tagMap16    byte = 0xde
	tagMap32    byte = 0xdf
)

// Limits of the compact encodings
const (
	maxFixCount  = 15
	maxFixStr    = 31
	maxFixInt    = 127
	minNegFixInt = -32
)

// Extension type codes reserved by the MessagePack specification
const (
	// TimestampCode is the extension type of the standard timestamp
	TimestampCode int8 = -1

	// MaxPolymorphicCode is the largest type code usable for polymorphism bindings.
	// Polymorphism uses the non-negative part of the extension code space.
	MaxPolymorphicCode = 127
)

// --------------------------------------------------------------------------
// Header scanning
// --------------------------------------------------------------------------

// headerLen returns the number of bytes of the header that starts with tag,
// including the tag itself and, for extensions, the type byte.
func headerLen(tag byte) (int, error) {
	switch {
	case tag <= posFixIntMax, tag >= negFixIntMin:
		return 1, nil
	case tag&0xf0 == fixMapPrefix, tag&0xf0 == fixArrPrefix, tag&0xe0 == fixStrPrefix:
		return 1, nil
	}
	switch tag {
	case tagNil, tagFalse, tagTrue:
		return 1, nil
	case tagUint8, tagInt8, tagUint16, tagInt16, tagUint32, tagInt32, tagUint64, tagInt64, tagFloat32, tagFloat64:
		return 1, nil
	case tagBin8, tagStr8:
		return 2, nil
	case tagBin16, tagStr16, tagArray16, tagMap16:
		return 3, nil
	case tagBin32, tagStr32, tagArray32, tagMap32:
		return 5, nil
	case tagFixExt1, tagFixExt2, tagFixExt4, tagFixExt8, tagFixExt16:
		return 2, nil
	case tagExt8:
		return 3, nil
	case tagExt16:
		return 4, nil
	case tagExt32:
		return 6, nil
	default:
		return 0, common.NewFormatError("dpack: invalid header byte 0x%02x", tag)
	}
}

// payloadAndChildren returns, for a complete header, the number of payload bytes that
// follow it and the number of nested values (array items, or keys plus values for maps).
func payloadAndChildren(hdr []byte) (payload int, children int) {
	tag := hdr[0]
	switch {
	case tag <= posFixIntMax, tag >= negFixIntMin:
		return 0, 0
	case tag&0xf0 == fixMapPrefix:
		return 0, 2 * int(tag&0x0f)
	case tag&0xf0 == fixArrPrefix:
		return 0, int(tag & 0x0f)
	case tag&0xe0 == fixStrPrefix:
		return int(tag & 0x1f), 0
	}
	switch tag {
	case tagUint8, tagInt8:
		return 1, 0
	case tagUint16, tagInt16:
		return 2, 0
	case tagUint32, tagInt32, tagFloat32:
		return 4, 0
	case tagUint64, tagInt64, tagFloat64:
		return 8, 0
	case tagBin8, tagStr8, tagExt8:
		return int(hdr[1]), 0
	case tagBin16, tagStr16, tagExt16:
		return int(binary.BigEndian.Uint16(hdr[1:3])), 0
	case tagBin32, tagStr32, tagExt32:
		return int(binary.BigEndian.Uint32(hdr[1:5])), 0
	case tagArray16:
		return 0, int(binary.BigEndian.Uint16(hdr[1:3]))
	case tagArray32:
		return 0, int(binary.BigEndian.Uint32(hdr[1:5]))
	case tagMap16:
		return 0, 2 * int(binary.BigEndian.Uint16(hdr[1:3]))
	case tagMap32:
		return 0, 2 * int(binary.BigEndian.Uint32(hdr[1:5]))
	case tagFixExt1:
		return 1, 0
	case tagFixExt2:
		return 2, 0
	case tagFixExt4:
		return 4, 0
	case tagFixExt8:
		return 8, 0
	case tagFixExt16:
		return 16, 0
	default:
		return 0, 0
	}
}

// ValueLength returns the number of bytes occupied by the first complete value in b.
// Nested arrays and maps are walked iteratively, so deeply nested input cannot
// exhaust the stack. A value that runs past the end of b is a truncation error.
func ValueLength(b []byte) (int, error) {
	pos := 0
	pending := 1
	for pending > 0 {
		if pos >= len(b) {
			return 0, common.NewShortBufferError(pos+1, len(b))
		}
		hl, err := headerLen(b[pos])
		if err != nil {
			return 0, err
		}
		if pos+hl > len(b) {
			return 0, common.NewShortBufferError(pos+hl, len(b))
		}
		payload, children := payloadAndChildren(b[pos : pos+hl])
		pos += hl + payload
		if pos > len(b) {
			return 0, common.NewShortBufferError(pos, len(b))
		}
		pending += children - 1
	}
	return pos, nil
}
