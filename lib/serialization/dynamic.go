package serialization

import (
	"bytes"
	"math"
	"reflect"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/wire"
)

// compileDynamic handles `any` positions. Packing uses the serializer of the runtime
// type of the value. Unpacking has no type to go by and produces the natural Go
// value of each token, see decodeDynamic.
func compileDynamic(p *Plan) (PackFunc, UnpackFunc, error) {
	resolve := p.Dynamic

	pack := func(w *wire.Writer, v reflect.Value) error {
		if v.IsNil() {
			w.WriteNil()
			return nil
		}
		elem := v.Elem()
		proc, err := resolve(elem.Type())
		if err != nil {
			return err
		}
		return proc.Pack(w, elem)
	}

	unpack := func(r *wire.Reader, v reflect.Value) error {
		x, err := decodeDynamic(r)
		if err != nil {
			return err
		}
		if x == nil {
			v.SetZero()
			return nil
		}
		v.Set(reflect.ValueOf(x))
		return nil
	}
	return pack, unpack, nil
}

// decodeDynamic decodes the next value without a target type. Nesting is bounded by
// the depth limit of r. Tokens map to:
//
//	nil                 nil
//	bool                bool
//	int, uint           int64, or uint64 above math.MaxInt64
//	float32, float64    float32, float64
//	string              string
//	binary              []byte
//	array               []any
//	map                 map[any]any
//	timestamp           time.Time
//	other extensions    wire.Ext
func decodeDynamic(r *wire.Reader) (any, error) {
	k, err := r.PeekKind()
	if err != nil {
		return nil, err
	}

	switch k {
	case wire.KindNil:
		return nil, r.ReadNil()
	case wire.KindBool:
		return r.ReadBool()
	case wire.KindInt:
		return r.ReadInt()
	case wire.KindUint:
		u, err := r.ReadUint()
		if err != nil {
			return nil, err
		}
		if u > math.MaxInt64 {
			return u, nil
		}
		return int64(u), nil
	case wire.KindFloat32:
		f, err := r.ReadFloat()
		return float32(f), err
	case wire.KindFloat64:
		return r.ReadFloat()
	case wire.KindString:
		return r.ReadString()
	case wire.KindBinary:
		return r.ReadBinary()

	case wire.KindArray:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, capacity(n, r))
		err = readItems(r, n, func(ir *wire.Reader, _ int) error {
			x, err := decodeDynamic(ir)
			out = append(out, x)
			return err
		})
		if err != nil {
			return nil, err
		}
		return out, nil

	case wire.KindMap:
		n, err := r.ReadMapHeader()
		if err != nil {
			return nil, err
		}
		out := make(map[any]any, capacity(n, r)/2)
		var key any
		err = readPairs(r, n, func(kr *wire.Reader) error {
			if key, err = decodeDynamic(kr); err != nil {
				return err
			}
			if key != nil && !reflect.ValueOf(key).Comparable() {
				return common.NewFormatError("dpack: map key of type %T cannot be used in an untyped map", key)
			}
			return nil
		}, func(vr *wire.Reader) error {
			x, err := decodeDynamic(vr)
			if err != nil {
				return err
			}
			out[key] = x
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil

	case wire.KindExt:
		code, err := r.PeekExtCode()
		if err != nil {
			return nil, err
		}
		if code == wire.TimestampCode {
			return r.ReadTime()
		}
		code, data, err := r.ReadExt()
		if err != nil {
			return nil, err
		}
		return wire.Ext{Code: code, Data: bytes.Clone(data)}, nil
	}
	return nil, common.NewFormatError("dpack: invalid token at offset %d", r.Offset())
}
