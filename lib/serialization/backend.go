package serialization

import (
	"bytes"
	"reflect"
	"time"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/traits"
	"github.com/ValentinKolb/dPack/lib/wire"
	"github.com/cockroachdb/errors"
)

// planBackend interprets plans: the compiled functions walk the plan with package
// reflect for every value.
type planBackend struct{}

// Compile implements Backend
func (planBackend) Compile(p *Plan) (PackFunc, UnpackFunc, error) {
	switch p.Strategy {
	case StrategyScalar:
		return compileScalar(p)
	case StrategyPointer:
		return compilePointer(p)
	case StrategyDynamic:
		return compileDynamic(p)
	case StrategyPolymorphic:
		return compilePolymorphic(p)
	case StrategyEnum:
		return compileEnum(p)
	case StrategyWholeObject:
		if p.Traits.Kind == traits.Array {
			return compileArray(p)
		}
		return compileBulk(p)
	case StrategyIncremental:
		return compileIncremental(p)
	case StrategyPairs:
		return compilePairs(p)
	case StrategyMemberWise:
		return compileMembers(p)
	case StrategyTuple:
		return compileTuple(p)
	}
	return nil, nil, errors.AssertionFailedf("dpack: no backend support for strategy %s", p.Strategy)
}

// --------------------------------------------------------------------------
// Item loops
// --------------------------------------------------------------------------

// readItems calls item exactly n times, one level deeper in r. Running out of input
// is reported as a TruncationError with the index of the item that could not be
// read; a nested collection running out reports its own index instead.
func readItems(r *wire.Reader, n int, item func(ir *wire.Reader, i int) error) error {
	if err := r.Enter(); err != nil {
		return err
	}
	defer r.Leave()

	for i := 0; i < n; i++ {
		if r.Exhausted() {
			return common.NewTruncationError(i, n)
		}
		if err := item(r, i); err != nil {
			return common.TruncatedAt(err, i, n)
		}
	}
	return nil
}

// readPairs is readItems for dictionaries: every item is a key followed by a value
func readPairs(r *wire.Reader, n int, key, value func(ir *wire.Reader) error) error {
	return readItems(r, n, func(ir *wire.Reader, _ int) error {
		if err := key(ir); err != nil {
			return err
		}
		if ir.Exhausted() {
			return common.NewShortBufferError(1, 0)
		}
		return value(ir)
	})
}

// capacity bounds a preallocation by the input size: every item takes at least one byte
func capacity(n int, r *wire.Reader) int {
	return min(n, r.Remaining())
}

func overflow(x any, t reflect.Type) error {
	return common.NewFormatError("dpack: value %v overflows %s", x, t)
}

// --------------------------------------------------------------------------
// Scalars and pointers
// --------------------------------------------------------------------------

func compileScalar(p *Plan) (PackFunc, UnpackFunc, error) {
	t := p.Type
	switch p.Scalar {
	case ScalarBool:
		return func(w *wire.Writer, v reflect.Value) error {
				w.WriteBool(v.Bool())
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				b, err := r.ReadBool()
				if err != nil {
					return err
				}
				v.SetBool(b)
				return nil
			}, nil

	case ScalarInt:
		return func(w *wire.Writer, v reflect.Value) error {
				w.WriteInt(v.Int())
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				x, err := r.ReadInt()
				if err != nil {
					return err
				}
				if v.OverflowInt(x) {
					return overflow(x, t)
				}
				v.SetInt(x)
				return nil
			}, nil

	case ScalarUint:
		return func(w *wire.Writer, v reflect.Value) error {
				w.WriteUint(v.Uint())
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				x, err := r.ReadUint()
				if err != nil {
					return err
				}
				if v.OverflowUint(x) {
					return overflow(x, t)
				}
				v.SetUint(x)
				return nil
			}, nil

	case ScalarFloat32, ScalarFloat64:
		single := p.Scalar == ScalarFloat32
		return func(w *wire.Writer, v reflect.Value) error {
				if single {
					w.WriteFloat32(float32(v.Float()))
				} else {
					w.WriteFloat64(v.Float())
				}
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				f, err := r.ReadFloat()
				if err != nil {
					return err
				}
				v.SetFloat(f)
				return nil
			}, nil

	case ScalarString:
		return func(w *wire.Writer, v reflect.Value) error {
				w.WriteString(v.String())
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				s, err := r.ReadString()
				if err != nil {
					return err
				}
				v.SetString(s)
				return nil
			}, nil

	case ScalarBinary:
		return func(w *wire.Writer, v reflect.Value) error {
				if v.IsNil() {
					w.WriteNil()
				} else {
					w.WriteBinary(v.Bytes())
				}
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				if r.TryReadNil() {
					v.SetZero()
					return nil
				}
				b, err := r.ReadBinary()
				if err != nil {
					return err
				}
				v.SetBytes(b)
				return nil
			}, nil

	case ScalarTime:
		return func(w *wire.Writer, v reflect.Value) error {
				w.WriteTime(v.Interface().(time.Time))
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				tm, err := r.ReadTime()
				if err != nil {
					return err
				}
				v.Set(reflect.ValueOf(tm))
				return nil
			}, nil

	case ScalarExt:
		return func(w *wire.Writer, v reflect.Value) error {
				e := v.Interface().(wire.Ext)
				w.WriteExt(e.Code, e.Data)
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				code, data, err := r.ReadExt()
				if err != nil {
					return err
				}
				v.Set(reflect.ValueOf(wire.Ext{Code: code, Data: bytes.Clone(data)}))
				return nil
			}, nil
	}
	return nil, nil, errors.AssertionFailedf("dpack: unknown scalar kind %d", p.Scalar)
}

func compilePointer(p *Plan) (PackFunc, UnpackFunc, error) {
	elem, elemType := p.Elem, p.Type.Elem()
	return func(w *wire.Writer, v reflect.Value) error {
			if v.IsNil() {
				w.WriteNil()
				return nil
			}
			return elem.Pack(w, v.Elem())
		}, func(r *wire.Reader, v reflect.Value) error {
			if r.TryReadNil() {
				v.SetZero()
				return nil
			}
			if err := r.Enter(); err != nil {
				return err
			}
			defer r.Leave()
			fresh := reflect.New(elemType)
			if err := elem.Unpack(r, fresh.Elem()); err != nil {
				return err
			}
			v.Set(fresh)
			return nil
		}, nil
}

// --------------------------------------------------------------------------
// Enums
// --------------------------------------------------------------------------

// compileEnum writes enums by name or by value. Decoding accepts both forms, so
// changing the method does not break existing data.
func compileEnum(p *Plan) (PackFunc, UnpackFunc, error) {
	info, names, t := p.Enum, p.EnumNames, p.Type
	byName := p.EnumMethod == ByName

	pack := func(w *wire.Writer, v reflect.Value) error {
		switch {
		case byName:
			w.WriteString(info.Name(v))
		case info.Signed:
			w.WriteInt(v.Int())
		default:
			w.WriteUint(v.Uint())
		}
		return nil
	}

	unpack := func(r *wire.Reader, v reflect.Value) error {
		k, err := r.PeekKind()
		if err != nil {
			return err
		}
		switch k {
		case wire.KindString, wire.KindBinary:
			name, err := r.ReadString()
			if err != nil {
				return err
			}
			member, ok := names[name]
			if !ok {
				return common.NewFormatError("dpack: %q is not a member of %s", name, t)
			}
			v.Set(member)
			return nil
		case wire.KindInt, wire.KindUint:
			if info.Signed {
				x, err := r.ReadInt()
				if err != nil {
					return err
				}
				if v.OverflowInt(x) {
					return overflow(x, t)
				}
				v.SetInt(x)
				return nil
			}
			x, err := r.ReadUint()
			if err != nil {
				return err
			}
			if v.OverflowUint(x) {
				return overflow(x, t)
			}
			v.SetUint(x)
			return nil
		}
		return common.NewFormatError("dpack: expected a name or a value of %s, found %s", t, k)
	}
	return pack, unpack, nil
}

// --------------------------------------------------------------------------
// Polymorphism
// --------------------------------------------------------------------------

// compilePolymorphic wraps values of bound types into extension frames carrying
// their type code. A value of the declared type that is not bound is written as
// is; any other runtime type cannot be written.
func compilePolymorphic(p *Plan) (PackFunc, UnpackFunc, error) {
	t, s, bound, base := p.Type, p.Schema, p.Bound, p.Base
	nullable := t.Kind() == reflect.Interface || t.Kind() == reflect.Pointer

	pack := func(w *wire.Writer, v reflect.Value) error {
		if nullable && v.IsNil() {
			w.WriteNil()
			return nil
		}
		val := v
		if t.Kind() == reflect.Interface {
			val = v.Elem()
		}

		if code, ok := s.CodeOf(val.Type()); ok {
			tmp := getWriter()
			defer putWriter(tmp)
			if err := bound[code].Pack(tmp, val); err != nil {
				return err
			}
			w.WriteExt(int8(code), tmp.Bytes())
			return nil
		}
		if base != nil && val.Type() == t {
			return base.Pack(w, v)
		}
		return common.NewUnboundTypeError(val.Type().String(), t.String())
	}

	unpack := func(r *wire.Reader, v reflect.Value) error {
		if r.TryReadNil() {
			v.SetZero()
			return nil
		}
		if r.IsExt() {
			code, err := r.PeekExtCode()
			if err != nil {
				return err
			}
			if code >= 0 {
				return unpackBound(r, v, t, bound)
			}
		}
		if base != nil {
			return base.Unpack(r, v)
		}
		k, err := r.PeekKind()
		if err != nil {
			return err
		}
		return common.NewFormatError("dpack: expected an extension frame for %s, found %s", t, k)
	}
	return pack, unpack, nil
}

// unpackBound decodes an extension frame with the serializer bound to its type code
func unpackBound(r *wire.Reader, v reflect.Value, t reflect.Type, bound map[byte]*Procedure) error {
	code, payload, err := r.ReadExt()
	if err != nil {
		return err
	}
	proc, ok := bound[byte(code)]
	if !ok {
		return &common.UnknownExtensionError{Code: code, Slot: t.String()}
	}
	fresh := reflect.New(proc.Type()).Elem()
	pr := r.Frame(payload)
	if err := pr.Enter(); err != nil {
		return err
	}
	defer pr.Leave()
	if err := proc.Unpack(pr, fresh); err != nil {
		return err
	}
	if !pr.Exhausted() {
		return common.NewFormatError("dpack: %d trailing bytes in extension frame %d of %s", pr.Remaining(), code, t)
	}
	v.Set(fresh)
	return nil
}

// --------------------------------------------------------------------------
// Collections
// --------------------------------------------------------------------------

// addressable returns a pointer to v, copying v when it is not addressable
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

// items collects the items of a custom collection through its All method
func items(v reflect.Value, m *traits.CollectionMethods) []reflect.Value {
	ptr := addressable(v)
	var out []reflect.Value
	if m.Count != "" {
		out = make([]reflect.Value, 0, ptr.MethodByName(m.Count).Call(nil)[0].Int())
	}
	for item := range ptr.MethodByName(m.Iterate).Call(nil)[0].Seq() {
		out = append(out, item)
	}
	return out
}

// pairs collects the entries of a custom dictionary through its Pairs method
func pairs(v reflect.Value, m *traits.CollectionMethods) (keys, values []reflect.Value) {
	ptr := addressable(v)
	for k, val := range ptr.MethodByName(m.Iterate).Call(nil)[0].Seq2() {
		keys = append(keys, k)
		values = append(values, val)
	}
	return keys, values
}

func packItems(w *wire.Writer, elem *Procedure, list []reflect.Value) error {
	w.WriteArrayHeader(len(list))
	for _, item := range list {
		if err := elem.Pack(w, item); err != nil {
			return err
		}
	}
	return nil
}

// compileArray handles Go arrays: the instance is allocated up front and filled by
// index. Missing trailing items keep their zero value.
func compileArray(p *Plan) (PackFunc, UnpackFunc, error) {
	t, elem := p.Type, p.Elem
	size := t.Len()

	pack := func(w *wire.Writer, v reflect.Value) error {
		w.WriteArrayHeader(size)
		for i := 0; i < size; i++ {
			if err := elem.Pack(w, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}

	unpack := func(r *wire.Reader, v reflect.Value) error {
		n, err := r.ReadArrayHeader()
		if err != nil {
			return err
		}
		if n > size {
			return common.NewFormatError("dpack: %d items do not fit into %s", n, t)
		}
		fresh := reflect.New(t).Elem()
		if err := readItems(r, n, func(ir *wire.Reader, i int) error {
			return elem.Unpack(ir, fresh.Index(i))
		}); err != nil {
			return err
		}
		v.Set(fresh)
		return nil
	}
	return pack, unpack, nil
}

// compileBulk handles custom collections built by a registered constructor once all
// items are decoded
func compileBulk(p *Plan) (PackFunc, UnpackFunc, error) {
	t, elem, ctor, methods := p.Type, p.Elem, p.Constructor, p.Traits.Methods
	elemType := p.Traits.ElementType

	pack := func(w *wire.Writer, v reflect.Value) error {
		return packItems(w, elem, items(v, methods))
	}

	unpack := func(r *wire.Reader, v reflect.Value) error {
		n, err := r.ReadArrayHeader()
		if err != nil {
			return err
		}
		decoded := make([]reflect.Value, 0, capacity(n, r))
		if err := readItems(r, n, func(ir *wire.Reader, _ int) error {
			item := reflect.New(elemType).Elem()
			if err := elem.Unpack(ir, item); err != nil {
				return err
			}
			decoded = append(decoded, item)
			return nil
		}); err != nil {
			return err
		}
		return setConstructed(v, ctor(decoded, nil), t)
	}
	return pack, unpack, nil
}

func setConstructed(v, built reflect.Value, t reflect.Type) error {
	if !built.IsValid() || !built.Type().AssignableTo(t) {
		return common.NewConfigurationError("dpack: bulk constructor of %s returned %v", t, built)
	}
	v.Set(built)
	return nil
}

// compileIncremental handles slices, sets and custom collections with an Add method:
// an empty instance is created and the items are added one by one
func compileIncremental(p *Plan) (PackFunc, UnpackFunc, error) {
	t, elem, ct := p.Type, p.Elem, p.Traits
	elemType := ct.ElementType

	switch {
	case ct.Methods != nil:
		methods := ct.Methods
		return func(w *wire.Writer, v reflect.Value) error {
				return packItems(w, elem, items(v, methods))
			}, func(r *wire.Reader, v reflect.Value) error {
				n, err := r.ReadArrayHeader()
				if err != nil {
					return err
				}
				fresh := reflect.New(t)
				add := fresh.MethodByName(methods.Add)
				if err := readItems(r, n, func(ir *wire.Reader, _ int) error {
					item := reflect.New(elemType).Elem()
					if err := elem.Unpack(ir, item); err != nil {
						return err
					}
					add.Call([]reflect.Value{item})
					return nil
				}); err != nil {
					return err
				}
				v.Set(fresh.Elem())
				return nil
			}, nil

	case ct.Kind == traits.Set:
		present := reflect.Zero(t.Elem())
		return func(w *wire.Writer, v reflect.Value) error {
				if v.IsNil() {
					w.WriteNil()
					return nil
				}
				w.WriteArrayHeader(v.Len())
				for it := v.MapRange(); it.Next(); {
					if err := elem.Pack(w, it.Key()); err != nil {
						return err
					}
				}
				return nil
			}, func(r *wire.Reader, v reflect.Value) error {
				if r.TryReadNil() {
					v.SetZero()
					return nil
				}
				n, err := r.ReadArrayHeader()
				if err != nil {
					return err
				}
				fresh := reflect.MakeMapWithSize(t, capacity(n, r))
				if err := readItems(r, n, func(ir *wire.Reader, _ int) error {
					key := reflect.New(elemType).Elem()
					if err := elem.Unpack(ir, key); err != nil {
						return err
					}
					fresh.SetMapIndex(key, present)
					return nil
				}); err != nil {
					return err
				}
				v.Set(fresh)
				return nil
			}, nil
	}

	// slices
	return func(w *wire.Writer, v reflect.Value) error {
			if v.IsNil() {
				w.WriteNil()
				return nil
			}
			n := v.Len()
			w.WriteArrayHeader(n)
			for i := 0; i < n; i++ {
				if err := elem.Pack(w, v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}, func(r *wire.Reader, v reflect.Value) error {
			if r.TryReadNil() {
				v.SetZero()
				return nil
			}
			n, err := r.ReadArrayHeader()
			if err != nil {
				return err
			}
			fresh := reflect.MakeSlice(t, 0, capacity(n, r))
			zero := reflect.Zero(elemType)
			if err := readItems(r, n, func(ir *wire.Reader, i int) error {
				fresh = reflect.Append(fresh, zero)
				return elem.Unpack(ir, fresh.Index(i))
			}); err != nil {
				return err
			}
			v.Set(fresh)
			return nil
		}, nil
}

// compilePairs handles dictionaries: maps, custom dictionaries with a Put method,
// and custom dictionaries built by a registered constructor
func compilePairs(p *Plan) (PackFunc, UnpackFunc, error) {
	t, key, value, ct, ctor := p.Type, p.Key, p.Value, p.Traits, p.Constructor
	keyType, valueType := ct.KeyType, ct.ValueType

	packPairs := func(w *wire.Writer, keys, values []reflect.Value) error {
		w.WriteMapHeader(len(keys))
		for i := range keys {
			if err := key.Pack(w, keys[i]); err != nil {
				return err
			}
			if err := value.Pack(w, values[i]); err != nil {
				return err
			}
		}
		return nil
	}

	// decode calls put for every decoded pair
	decode := func(r *wire.Reader, n int, put func(k, v reflect.Value)) error {
		var k reflect.Value
		return readPairs(r, n, func(kr *wire.Reader) error {
			k = reflect.New(keyType).Elem()
			return key.Unpack(kr, k)
		}, func(vr *wire.Reader) error {
			val := reflect.New(valueType).Elem()
			if err := value.Unpack(vr, val); err != nil {
				return err
			}
			put(k, val)
			return nil
		})
	}

	if ct.Methods != nil {
		methods := ct.Methods
		pack := func(w *wire.Writer, v reflect.Value) error {
			keys, values := pairs(v, methods)
			return packPairs(w, keys, values)
		}
		unpack := func(r *wire.Reader, v reflect.Value) error {
			n, err := r.ReadMapHeader()
			if err != nil {
				return err
			}
			if ctor != nil {
				keys := make([]reflect.Value, 0, capacity(n, r))
				values := make([]reflect.Value, 0, capacity(n, r))
				if err := decode(r, n, func(k, val reflect.Value) {
					keys, values = append(keys, k), append(values, val)
				}); err != nil {
					return err
				}
				return setConstructed(v, ctor(keys, values), t)
			}
			fresh := reflect.New(t)
			put := fresh.MethodByName(methods.Add)
			if err := decode(r, n, func(k, val reflect.Value) {
				put.Call([]reflect.Value{k, val})
			}); err != nil {
				return err
			}
			v.Set(fresh.Elem())
			return nil
		}
		return pack, unpack, nil
	}

	pack := func(w *wire.Writer, v reflect.Value) error {
		if v.IsNil() {
			w.WriteNil()
			return nil
		}
		w.WriteMapHeader(v.Len())
		for it := v.MapRange(); it.Next(); {
			if err := key.Pack(w, it.Key()); err != nil {
				return err
			}
			if err := value.Pack(w, it.Value()); err != nil {
				return err
			}
		}
		return nil
	}
	unpack := func(r *wire.Reader, v reflect.Value) error {
		if r.TryReadNil() {
			v.SetZero()
			return nil
		}
		n, err := r.ReadMapHeader()
		if err != nil {
			return err
		}
		fresh := reflect.MakeMapWithSize(t, capacity(n, r)/2)
		if err := decode(r, n, func(k, val reflect.Value) {
			fresh.SetMapIndex(k, val)
		}); err != nil {
			return err
		}
		v.Set(fresh)
		return nil
	}
	return pack, unpack, nil
}

// --------------------------------------------------------------------------
// Structs and tuples
// --------------------------------------------------------------------------

// compileMembers packs structs in the configured layout. Decoding accepts both
// layouts: members missing from the input keep their zero value, unknown members
// in map layout and surplus items in array layout are skipped.
func compileMembers(p *Plan) (PackFunc, UnpackFunc, error) {
	t, members, layout := p.Type, p.Members, p.Layout
	byName := make(map[string]int, len(members))
	for i, m := range members {
		byName[m.Name] = i
	}

	pack := func(w *wire.Writer, v reflect.Value) error {
		if layout == AsArray {
			w.WriteArrayHeader(len(members))
			for _, m := range members {
				if err := m.Proc.Pack(w, v.FieldByIndex(m.Index)); err != nil {
					return common.WrapSlot(err, "member %s", m.Name)
				}
			}
			return nil
		}

		count := 0
		for _, m := range members {
			if !m.OmitEmpty || !v.FieldByIndex(m.Index).IsZero() {
				count++
			}
		}
		w.WriteMapHeader(count)
		for _, m := range members {
			f := v.FieldByIndex(m.Index)
			if m.OmitEmpty && f.IsZero() {
				continue
			}
			w.WriteString(m.Name)
			if err := m.Proc.Pack(w, f); err != nil {
				return common.WrapSlot(err, "member %s", m.Name)
			}
		}
		return nil
	}

	unpack := func(r *wire.Reader, v reflect.Value) error {
		fresh := reflect.New(t).Elem()

		if r.IsMapHeader() {
			n, err := r.ReadMapHeader()
			if err != nil {
				return err
			}
			var name string
			err = readPairs(r, n, func(kr *wire.Reader) error {
				name, err = kr.ReadString()
				return err
			}, func(vr *wire.Reader) error {
				i, ok := byName[name]
				if !ok {
					return vr.Skip()
				}
				return members[i].Proc.Unpack(vr, fresh.FieldByIndex(members[i].Index))
			})
			if err != nil {
				return err
			}
			v.Set(fresh)
			return nil
		}

		n, err := r.ReadArrayHeader()
		if err != nil {
			return err
		}
		if err := readItems(r, n, func(ir *wire.Reader, i int) error {
			if i >= len(members) {
				return ir.Skip()
			}
			return members[i].Proc.Unpack(ir, fresh.FieldByIndex(members[i].Index))
		}); err != nil {
			return err
		}
		v.Set(fresh)
		return nil
	}
	return pack, unpack, nil
}

// compileTuple packs tuples as arrays of exactly their arity
func compileTuple(p *Plan) (PackFunc, UnpackFunc, error) {
	t, members := p.Type, p.Members
	arity := len(members)

	pack := func(w *wire.Writer, v reflect.Value) error {
		w.WriteArrayHeader(arity)
		for _, m := range members {
			if err := m.Proc.Pack(w, v.FieldByIndex(m.Index)); err != nil {
				return err
			}
		}
		return nil
	}

	unpack := func(r *wire.Reader, v reflect.Value) error {
		n, err := r.ReadArrayHeader()
		if err != nil {
			return err
		}
		if n != arity {
			return common.NewFormatError("dpack: %s has %d items, found %d", t, arity, n)
		}
		fresh := reflect.New(t).Elem()
		if err := readItems(r, n, func(ir *wire.Reader, i int) error {
			return members[i].Proc.Unpack(ir, fresh.FieldByIndex(members[i].Index))
		}); err != nil {
			return err
		}
		v.Set(fresh)
		return nil
	}
	return pack, unpack, nil
}
