package serialization

import (
	"reflect"

	"github.com/ValentinKolb/dPack/lib/schema"
	"github.com/ValentinKolb/dPack/lib/traits"
	"github.com/ValentinKolb/dPack/lib/wire"
)

// Strategy is the way a type is packed and unpacked. It is chosen once per
// (type, schema) by the builder.
type Strategy uint8

const (
	// StrategyScalar reads and writes a single wire token
	StrategyScalar Strategy = iota
	// StrategyPointer writes nil or the pointee
	StrategyPointer
	// StrategyDynamic handles the empty interface by the runtime type
	StrategyDynamic
	// StrategyPolymorphic wraps bound types into extension frames
	StrategyPolymorphic
	// StrategyEnum writes enum values by name or by value
	StrategyEnum
	// StrategyWholeObject counts the items first and builds the collection at once
	StrategyWholeObject
	// StrategyIncremental creates an empty collection and adds the items one by one
	StrategyIncremental
	// StrategyPairs is StrategyIncremental for dictionaries, reading a key and a value per item
	StrategyPairs
	// StrategyMemberWise packs structs member by member
	StrategyMemberWise
	// StrategyTuple packs tuples positionally with a fixed arity
	StrategyTuple
	// StrategyUnknown is reported by procedures whose build failed
	StrategyUnknown
)

var strategyNames = [...]string{
	StrategyScalar:      "scalar",
	StrategyPointer:     "pointer",
	StrategyDynamic:     "dynamic",
	StrategyPolymorphic: "polymorphic",
	StrategyEnum:        "enum",
	StrategyWholeObject: "whole-object",
	StrategyIncremental: "incremental",
	StrategyPairs:       "pairs",
	StrategyMemberWise:  "member-wise",
	StrategyTuple:       "tuple",
	StrategyUnknown:     "unknown",
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "unknown"
}

// ScalarKind selects the wire token of a scalar plan
type ScalarKind uint8

const (
	ScalarBool ScalarKind = iota
	ScalarInt
	ScalarUint
	ScalarFloat32
	ScalarFloat64
	ScalarString
	ScalarBinary
	ScalarTime
	ScalarExt
)

// MemberPlan is one member of a struct or one item of a tuple
type MemberPlan struct {
	// Name is the wire key in map layout
	Name      string
	Index     []int
	OmitEmpty bool
	Proc      *Procedure
}

// Plan is the tagged variant the builder produces for one (type, schema). Which
// fields are set depends on Strategy. Nested serializers are referenced as
// procedures, which may still be placeholders while the plan is compiled.
type Plan struct {
	Strategy Strategy
	Type     reflect.Type
	Schema   *schema.PolymorphismSchema
	Traits   traits.CollectionTraits

	Scalar ScalarKind

	// Elem is the pointee (pointers) or item (collections) serializer
	Elem *Procedure

	// Key and Value are the dictionary serializers
	Key   *Procedure
	Value *Procedure

	// Members of structs and tuples, in wire order
	Members []MemberPlan
	Layout  ObjectMethod

	// Bound maps type codes to the serializers of the bound types; Base serializes
	// values of the declared type that are not bound
	Bound map[byte]*Procedure
	Base  *Procedure

	Enum       traits.EnumInfo
	EnumMethod EnumMethod
	EnumNames  map[string]reflect.Value

	// Constructor builds collections without an add method
	Constructor traits.BulkConstructor

	// Dynamic returns the serializer of a runtime type stored in an empty interface
	Dynamic func(t reflect.Type) (*Procedure, error)
}

type (
	// PackFunc writes v, a value of the plan's type
	PackFunc func(w *wire.Writer, v reflect.Value) error

	// UnpackFunc decodes the next value into v, which must be settable. v is only
	// assigned once the value has been decoded completely.
	UnpackFunc func(r *wire.Reader, v reflect.Value) error
)

// Backend turns a Plan into executable pack and unpack functions. The builder
// only ever talks to this interface, so a backend generating specialized code can
// replace the interpreting one without touching the pipeline.
type Backend interface {
	Compile(p *Plan) (PackFunc, UnpackFunc, error)
}
