package schema

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Type table
// --------------------------------------------------------------------------

// TypeTable maps the type names used in `dpack` struct tags to Go types.
// It is safe for concurrent use.
type TypeTable struct {
	types *xsync.MapOf[string, reflect.Type]
}

// NewTypeTable creates an empty table
func NewTypeTable() *TypeTable {
	return &TypeTable{types: xsync.NewMapOf[string, reflect.Type]()}
}

// Register adds t under name. Registering a different type under a name that is
// already taken is a configuration error.
func (tt *TypeTable) Register(name string, t reflect.Type) error {
	if name == "" || t == nil {
		return common.NewConfigurationError("dpack: known type needs a name and a type")
	}
	if prev, loaded := tt.types.LoadOrStore(name, t); loaded && prev != t {
		return common.NewConfigurationError("dpack: known type name %q is already used by %s", name, prev)
	}
	return nil
}

// Lookup returns the type registered under name
func (tt *TypeTable) Lookup(name string) (reflect.Type, bool) {
	if tt == nil {
		return nil, false
	}
	return tt.types.Load(name)
}

// Len returns the number of registered names
func (tt *TypeTable) Len() int {
	if tt == nil {
		return 0
	}
	return tt.types.Size()
}

// RegisterType adds the type parameter under name, or under its type name when
// name is empty
func RegisterType[T any](tt *TypeTable, name string) error {
	t := reflect.TypeFor[T]()
	if name == "" {
		name = t.Name()
	}
	return tt.Register(name, t)
}

// --------------------------------------------------------------------------
// Tag parsing
// --------------------------------------------------------------------------

// ParseBindings parses a binding list of the form "1:Circle|2:Square". Type names
// are looked up in table.
func ParseBindings(s string, table *TypeTable) ([]Binding, error) {
	var out []Binding
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		codeStr, name, ok := strings.Cut(part, ":")
		if !ok {
			return nil, common.NewConfigurationError("dpack: binding %q must have the form code:type", part)
		}
		code, err := strconv.Atoi(strings.TrimSpace(codeStr))
		if err != nil || code < 0 || code > 255 {
			return nil, common.NewConfigurationError("dpack: invalid binding code %q", codeStr)
		}
		name = strings.TrimSpace(name)
		t, found := table.Lookup(name)
		if !found {
			return nil, common.NewConfigurationError("dpack: unknown type %q in binding %q", name, part)
		}
		out = append(out, Binding{Code: byte(code), Type: t})
	}
	return out, nil
}

// DeclarationFromTag builds a Declaration from the key=value options of a `dpack`
// struct tag:
//
//	known=1:Circle|2:Square   bindings of the member itself
//	item=...                  bindings of collection items
//	key=... / value=...       bindings of dictionary keys and values
//	tuple2=...                bindings of tuple item 2
//
// It returns nil when no option declares anything.
func DeclarationFromTag(options []string, table *TypeTable) (*Declaration, error) {
	var d Declaration
	for _, opt := range options {
		key, value, ok := strings.Cut(opt, "=")
		if !ok {
			return nil, common.NewConfigurationError("dpack: unknown tag option %q", opt)
		}
		bindings, err := ParseBindings(value, table)
		if err != nil {
			return nil, err
		}
		switch {
		case key == "known":
			d.Bindings = append(d.Bindings, bindings...)
		case key == "item":
			d.Item = &Declaration{Bindings: bindings}
		case key == "key":
			d.Key = &Declaration{Bindings: bindings}
		case key == "value":
			d.Value = &Declaration{Bindings: bindings}
		case strings.HasPrefix(key, "tuple"):
			i, err := strconv.Atoi(strings.TrimPrefix(key, "tuple"))
			if err != nil {
				return nil, common.NewConfigurationError("dpack: invalid tuple index in tag option %q", opt)
			}
			if d.TupleItems == nil {
				d.TupleItems = make(map[int]*Declaration)
			}
			d.TupleItems[i] = &Declaration{Bindings: bindings}
		default:
			return nil, common.NewConfigurationError("dpack: unknown tag option %q", opt)
		}
	}
	if d.IsZero() {
		return nil, nil
	}
	return &d, nil
}
