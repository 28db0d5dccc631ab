package traits

import (
	"fmt"
	"reflect"

	"github.com/ValentinKolb/dPack/lib/common"
)

var stringerType = reflect.TypeFor[fmt.Stringer]()

// EnumInfo describes an enum-like type: a named integer type with a String method
// and a method `EnumValues() []T` listing its members. Integer types with only a
// String method (time.Duration, for instance) are plain integers.
type EnumInfo struct {
	Type reflect.Type

	// Signed is set for types with a signed underlying integer kind
	Signed bool

	// Values lists the declared members
	Values []reflect.Value
}

// Enum inspects t and reports whether it is enum-like
func Enum(t reflect.Type) (EnumInfo, bool) {
	if t.Name() == "" || !isInteger(t.Kind()) {
		return EnumInfo{}, false
	}
	if !t.Implements(stringerType) && !reflect.PointerTo(t).Implements(stringerType) {
		return EnumInfo{}, false
	}
	m, ok := method(t, "EnumValues", 0, 1)
	if !ok || m.Type.Out(0) != reflect.SliceOf(t) {
		return EnumInfo{}, false
	}

	info := EnumInfo{Type: t, Signed: isSigned(t.Kind())}
	list := reflect.New(t).Method(m.Index).Call(nil)[0]
	for i := 0; i < list.Len(); i++ {
		info.Values = append(info.Values, list.Index(i))
	}
	return info, true
}

// Name returns the String() of an enum value. v need not be addressable.
func (e EnumInfo) Name(v reflect.Value) string {
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	p := reflect.New(e.Type)
	p.Elem().Set(v)
	return p.Interface().(fmt.Stringer).String()
}

// ByName builds the reverse lookup of member names
func (e EnumInfo) ByName() (map[string]reflect.Value, error) {
	out := make(map[string]reflect.Value, len(e.Values))
	for _, v := range e.Values {
		name := e.Name(v)
		if prev, dup := out[name]; dup && !prev.Equal(v) {
			return nil, common.NewConfigurationError("dpack: enum %s has two members named %q", e.Type, name)
		}
		out[name] = v
	}
	return out, nil
}

func isInteger(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k)
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}
