package wire

// Kind is the category of the next token on the wire
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNil
	KindBool
	KindInt  // negative fixint and the signed int family
	KindUint // positive fixint and the unsigned int family
	KindFloat32
	KindFloat64
	KindString
	KindBinary
	KindArray
	KindMap
	KindExt
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindArray:
		return "array header"
	case KindMap:
		return "map header"
	case KindExt:
		return "extension"
	default:
		return "invalid"
	}
}

// kindOf maps a header byte to its Kind
func kindOf(tag byte) Kind {
	switch {
	case tag <= posFixIntMax:
		return KindUint
	case tag >= negFixIntMin:
		return KindInt
	case tag&0xf0 == fixMapPrefix:
		return KindMap
	case tag&0xf0 == fixArrPrefix:
		return KindArray
	case tag&0xe0 == fixStrPrefix:
		return KindString
	}
	switch tag {
	case tagNil:
		return KindNil
	case tagFalse, tagTrue:
		return KindBool
	case tagBin8, tagBin16, tagBin32:
		return KindBinary
	case tagExt8, tagExt16, tagExt32, tagFixExt1, tagFixExt2, tagFixExt4, tagFixExt8, tagFixExt16:
		return KindExt
	case tagFloat32:
		return KindFloat32
	case tagFloat64:
		return KindFloat64
	case tagUint8, tagUint16, tagUint32, tagUint64:
		return KindUint
	case tagInt8, tagInt16, tagInt32, tagInt64:
		return KindInt
	case tagStr8, tagStr16, tagStr32:
		return KindString
	case tagArray16, tagArray32:
		return KindArray
	case tagMap16, tagMap32:
		return KindMap
	default:
		return KindInvalid
	}
}

// Ext is an extension value whose type code has no meaning to the decoder.
// It is what a dynamically typed slot receives for unknown extension frames.
type Ext struct {
	Code int8
	Data []byte
}
