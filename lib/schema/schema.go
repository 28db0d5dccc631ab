package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/ValentinKolb/dPack/lib/wire"
	"github.com/samber/lo"
)

// --------------------------------------------------------------------------
// Declarations
// --------------------------------------------------------------------------

// Binding pairs a polymorphism type code with the concrete type it stands for
type Binding struct {
	Code byte
	Type reflect.Type
}

// Bind creates a Binding for the type parameter
func Bind[T any](code byte) Binding {
	return Binding{Code: code, Type: reflect.TypeFor[T]()}
}

// Declaration is the raw, unvalidated description of the polymorphism of a
// type position. Declarations come from `dpack` struct tags or are built by
// hand and passed through serialization.Options. Resolve turns them into a
// PolymorphismSchema.
type Declaration struct {
	// Bindings of the position itself
	Bindings []Binding

	// Item applies to the items of a collection
	Item *Declaration

	// Key and Value apply to the keys and values of a dictionary
	Key   *Declaration
	Value *Declaration

	// TupleItems applies to the items of a tuple, indexed from 1
	TupleItems map[int]*Declaration
}

// Known creates a Declaration with the given bindings
func Known(bindings ...Binding) *Declaration {
	return &Declaration{Bindings: bindings}
}

// IsZero reports whether d declares nothing
func (d *Declaration) IsZero() bool {
	return d == nil ||
		(len(d.Bindings) == 0 && d.Item.IsZero() && d.Key.IsZero() && d.Value.IsZero() &&
			!lo.SomeBy(lo.Values(d.TupleItems), func(t *Declaration) bool { return !t.IsZero() }))
}

// --------------------------------------------------------------------------
// Resolved schema
// --------------------------------------------------------------------------

// PolymorphismSchema is the resolved, immutable polymorphism tree of a type
// position. A nil *PolymorphismSchema behaves like Default.
type PolymorphismSchema struct {
	bindings   []Binding // ordered by code
	byCode     map[byte]reflect.Type
	byType     map[reflect.Type]byte
	item       *PolymorphismSchema
	key        *PolymorphismSchema
	value      *PolymorphismSchema
	tupleItems map[int]*PolymorphismSchema

	fingerprint string
}

// Default is the empty schema: no polymorphism anywhere below the position
var Default = &PolymorphismSchema{}

// Lookup returns the type bound to code
func (s *PolymorphismSchema) Lookup(code byte) (reflect.Type, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.byCode[code]
	return t, ok
}

// CodeOf returns the code bound to t
func (s *PolymorphismSchema) CodeOf(t reflect.Type) (byte, bool) {
	if s == nil {
		return 0, false
	}
	c, ok := s.byType[t]
	return c, ok
}

// Bindings returns a copy of the bindings of this node, ordered by code
func (s *PolymorphismSchema) Bindings() []Binding {
	if s == nil {
		return nil
	}
	return slices.Clone(s.bindings)
}

// HasBindings reports whether this node itself carries bindings
func (s *PolymorphismSchema) HasBindings() bool { return s != nil && len(s.bindings) > 0 }

// ItemSchema returns the schema of collection items
func (s *PolymorphismSchema) ItemSchema() *PolymorphismSchema {
	if s == nil || s.item == nil {
		return Default
	}
	return s.item
}

// KeySchema returns the schema of dictionary keys
func (s *PolymorphismSchema) KeySchema() *PolymorphismSchema {
	if s == nil || s.key == nil {
		return Default
	}
	return s.key
}

// ValueSchema returns the schema of dictionary values
func (s *PolymorphismSchema) ValueSchema() *PolymorphismSchema {
	if s == nil || s.value == nil {
		return Default
	}
	return s.value
}

// TupleItemSchema returns the schema of tuple item i (1-based)
func (s *PolymorphismSchema) TupleItemSchema(i int) *PolymorphismSchema {
	if s == nil || s.tupleItems[i] == nil {
		return Default
	}
	return s.tupleItems[i]
}

// IsEmpty reports whether neither this node nor any node below it has bindings
func (s *PolymorphismSchema) IsEmpty() bool { return s.Fingerprint() == "" }

// Strip returns the schema without the bindings of this node. It is the schema
// a bound concrete type is serialized with once its type code is known.
func (s *PolymorphismSchema) Strip() *PolymorphismSchema {
	if !s.HasBindings() {
		return s.orDefault()
	}
	stripped := &PolymorphismSchema{
		item:       s.item,
		key:        s.key,
		value:      s.value,
		tupleItems: s.tupleItems,
	}
	return stripped.seal()
}

// Fingerprint returns a stable string identifying the schema. Two schemas with the
// same fingerprint serialize identically. The empty schema has the empty fingerprint.
func (s *PolymorphismSchema) Fingerprint() string {
	if s == nil {
		return ""
	}
	return s.fingerprint
}

func (s *PolymorphismSchema) String() string {
	if s.IsEmpty() {
		return "<default>"
	}
	return s.Fingerprint()
}

func (s *PolymorphismSchema) orDefault() *PolymorphismSchema {
	if s == nil {
		return Default
	}
	return s
}

// seal builds the lookup tables and the fingerprint. Empty children are dropped
// so a schema without bindings anywhere collapses to Default.
func (s *PolymorphismSchema) seal() *PolymorphismSchema {
	dropEmpty := func(c *PolymorphismSchema) *PolymorphismSchema {
		if c.IsEmpty() {
			return nil
		}
		return c
	}
	s.item, s.key, s.value = dropEmpty(s.item), dropEmpty(s.key), dropEmpty(s.value)
	s.tupleItems = lo.PickBy(s.tupleItems, func(_ int, c *PolymorphismSchema) bool { return !c.IsEmpty() })
	if len(s.tupleItems) == 0 {
		s.tupleItems = nil
	}

	slices.SortFunc(s.bindings, func(a, b Binding) int { return int(a.Code) - int(b.Code) })
	s.byCode = make(map[byte]reflect.Type, len(s.bindings))
	s.byType = make(map[reflect.Type]byte, len(s.bindings))
	for _, b := range s.bindings {
		s.byCode[b.Code] = b.Type
		s.byType[b.Type] = b.Code
	}

	var sb strings.Builder
	if len(s.bindings) > 0 {
		sb.WriteString("{")
		sb.WriteString(strings.Join(lo.Map(s.bindings, func(b Binding, _ int) string {
			return fmt.Sprintf("%d:%s", b.Code, typeID(b.Type))
		}), ","))
		sb.WriteString("}")
	}
	child := func(name string, c *PolymorphismSchema) {
		if c != nil {
			sb.WriteString(fmt.Sprintf("%s(%s)", name, c.fingerprint))
		}
	}
	child("item", s.item)
	child("key", s.key)
	child("value", s.value)
	indexes := lo.Keys(s.tupleItems)
	slices.Sort(indexes)
	for _, i := range indexes {
		child(fmt.Sprintf("t%d", i), s.tupleItems[i])
	}
	s.fingerprint = sb.String()

	if s.fingerprint == "" {
		return Default
	}
	return s
}

// typeID identifies a type beyond its name: two types printed the same way
// (e.g. main.Circle in different packages) have different runtime descriptors.
func typeID(t reflect.Type) string {
	return fmt.Sprintf("%s@%p", t, t)
}

// MaxCode is the largest code a binding may use
const MaxCode = wire.MaxPolymorphicCode
