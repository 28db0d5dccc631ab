package schema

import (
	"reflect"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/samber/lo"
)

// Shape lists the slots of a type that nested declarations attach to.
// A nil slot type means the type has no such slot.
type Shape struct {
	Item  reflect.Type
	Key   reflect.Type
	Value reflect.Type

	// Dictionary is set for map-like types
	Dictionary bool

	// Tuple holds the item types of a tuple, in order
	Tuple []reflect.Type
}

// ShapeFunc reports the Shape of a type. lib/traits provides the implementation
// used by the serializers.
type ShapeFunc func(t reflect.Type) (Shape, error)

// Resolve validates decl against the type t of the position it is attached to and
// returns the resolved schema. A nil or empty declaration resolves to Default.
//
// Resolution rejects codes above MaxCode, duplicate codes and types bound twice in
// one node, and bound types that cannot be stored in the position. Tuple item
// declarations with an index outside the tuple's arity are ignored. Bindings
// declared on a dictionary without any key, item or value declaration apply to
// its values.
func Resolve(decl *Declaration, t reflect.Type, shapeOf ShapeFunc) (*PolymorphismSchema, error) {
	if decl.IsZero() {
		return Default, nil
	}

	var shape Shape
	if t != nil && shapeOf != nil {
		var err error
		if shape, err = shapeOf(t); err != nil {
			return nil, err
		}
	}

	if shape.Dictionary {
		decl = normalizeDictionary(decl)
	}

	s := &PolymorphismSchema{bindings: append([]Binding(nil), decl.Bindings...)}
	if err := validateBindings(s.bindings, t); err != nil {
		return nil, err
	}

	var err error
	if decl.Item != nil {
		if s.item, err = Resolve(decl.Item, shape.Item, shapeOf); err != nil {
			return nil, common.WrapSlot(err, "item")
		}
	}
	if decl.Key != nil {
		if s.key, err = Resolve(decl.Key, shape.Key, shapeOf); err != nil {
			return nil, common.WrapSlot(err, "key")
		}
	}
	if decl.Value != nil {
		if s.value, err = Resolve(decl.Value, shape.Value, shapeOf); err != nil {
			return nil, common.WrapSlot(err, "value")
		}
	}
	for i, d := range decl.TupleItems {
		if i < 1 || i > len(shape.Tuple) {
			// tolerated so one declaration can serve tuples of different arities
			continue
		}
		if s.tupleItems == nil {
			s.tupleItems = make(map[int]*PolymorphismSchema)
		}
		if s.tupleItems[i], err = Resolve(d, shape.Tuple[i-1], shapeOf); err != nil {
			return nil, common.WrapSlot(err, "tuple item %d", i)
		}
	}
	return s.seal(), nil
}

// MustResolve is like Resolve but panics on error. It is meant for package level schemas.
func MustResolve(decl *Declaration, t reflect.Type, shapeOf ShapeFunc) *PolymorphismSchema {
	s, err := Resolve(decl, t, shapeOf)
	if err != nil {
		panic(err)
	}
	return s
}

// normalizeDictionary moves the bindings of a dictionary position to its values
// unless the declaration addresses keys, items or values explicitly. Item
// declarations on a dictionary address its values.
func normalizeDictionary(decl *Declaration) *Declaration {
	d := *decl
	if d.Value == nil && d.Item != nil {
		d.Value, d.Item = d.Item, nil
	}
	if len(d.Bindings) > 0 && d.Key == nil && d.Value == nil {
		d.Value = &Declaration{Bindings: d.Bindings}
		d.Bindings = nil
	}
	return &d
}

// validateBindings checks the bindings of one node against the slot type t
func validateBindings(bindings []Binding, t reflect.Type) error {
	for _, b := range bindings {
		if b.Type == nil {
			return common.NewConfigurationError("dpack: binding %d has no type", b.Code)
		}
		if b.Code > MaxCode {
			return common.NewConfigurationError("dpack: binding code %d of %s must be under 128 (0x80)", b.Code, b.Type)
		}
		if t != nil && !b.Type.AssignableTo(t) {
			return common.NewConfigurationError("dpack: bound type %s (code %d) cannot be assigned to %s", b.Type, b.Code, t)
		}
		if b.Type.Kind() == reflect.Interface {
			return common.NewConfigurationError("dpack: bound type %s (code %d) must be concrete", b.Type, b.Code)
		}
	}
	if dup := lo.FindDuplicatesBy(bindings, func(b Binding) byte { return b.Code }); len(dup) > 0 {
		return common.NewConfigurationError("dpack: binding code %d is used more than once", dup[0].Code)
	}
	if dup := lo.FindDuplicatesBy(bindings, func(b Binding) reflect.Type { return b.Type }); len(dup) > 0 {
		return common.NewConfigurationError("dpack: type %s is bound to more than one code", dup[0].Type)
	}
	return nil
}
