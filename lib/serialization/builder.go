package serialization

import (
	"reflect"
	"time"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/schema"
	"github.com/ValentinKolb/dPack/lib/traits"
	"github.com/ValentinKolb/dPack/lib/wire"
)

// maxBuildDepth bounds the nesting of serializers built in one go. Recursion
// through a type that is already being built resolves to its placeholder and does
// not count; the limit only stops shapes that keep producing new types.
const maxBuildDepth = 256

var (
	timeType = reflect.TypeFor[time.Time]()
	extType  = reflect.TypeFor[wire.Ext]()
)

// build is one top-level construction. The placeholders it claims are published
// together when it succeeds and discarded together when it fails. Placeholders of
// builds running on other goroutines are recorded as foreign: when one of them fails,
// the procedures of this build are broken too.
type build struct {
	depth   int
	claimed []*Procedure
	mine    map[*Procedure]struct{}
	foreign map[*Procedure]struct{}
}

// claim records p as a placeholder of this build
func (b *build) claim(p *Procedure) {
	if b.mine == nil {
		b.mine = make(map[*Procedure]struct{})
	}
	b.mine[p] = struct{}{}
	b.claimed = append(b.claimed, p)
}

// refer records a reference to p, which was found in the cache. A published
// procedure can still break while the build that made it waits for its own foreign
// references, so every procedure not claimed by b is recorded.
func (b *build) refer(p *Procedure) {
	if _, ok := b.mine[p]; ok {
		return
	}
	if b.foreign == nil {
		b.foreign = make(map[*Procedure]struct{})
	}
	b.foreign[p] = struct{}{}
}

// planner selects the strategy of one (type, schema) and resolves the nested
// serializers. It runs on the goroutine that claimed the placeholder.
type planner struct {
	reg   *Registry
	build *build
	opts  *Options
}

func (pl *planner) nested(t reflect.Type, s *schema.PolymorphismSchema) (*Procedure, error) {
	return pl.reg.lookup(pl.build, t, s)
}

// plan builds the Plan of t. Strategy selection order: polymorphism (the schema
// binds types), well-known scalars, interfaces, pointers, enums, scalars, tuples,
// collections, structs.
func (pl *planner) plan(t reflect.Type, s *schema.PolymorphismSchema) (*Plan, error) {
	p := &Plan{Type: t, Schema: s}

	if s.HasBindings() {
		return p, pl.planPolymorphic(p)
	}

	switch {
	case t == timeType:
		p.Strategy, p.Scalar = StrategyScalar, ScalarTime
		return p, nil
	case t == extType:
		p.Strategy, p.Scalar = StrategyScalar, ScalarExt
		return p, nil
	case t.Kind() == reflect.Interface:
		if !traits.IsAny(t) {
			return nil, common.NewConfigurationError("dpack: interface %s needs polymorphism bindings", t)
		}
		reg := pl.reg
		p.Strategy = StrategyDynamic
		p.Dynamic = func(t reflect.Type) (*Procedure, error) { return reg.GetOrBuild(t, schema.Default) }
		return p, nil
	case t.Kind() == reflect.Pointer:
		elem, err := pl.nested(t.Elem(), s)
		if err != nil {
			return nil, err
		}
		p.Strategy, p.Elem = StrategyPointer, elem
		return p, nil
	}

	insp := pl.opts.Inspector
	if info, ok := insp.Enum(t); ok {
		names, err := info.ByName()
		if err != nil {
			return nil, err
		}
		p.Strategy, p.Enum, p.EnumNames = StrategyEnum, info, names
		p.EnumMethod = pl.opts.enumMethodOf(t)
		return p, nil
	}
	if k, ok := scalarOf(t); ok {
		p.Strategy, p.Scalar = StrategyScalar, k
		return p, nil
	}
	if insp.IsTuple(t) {
		return p, pl.planTuple(p)
	}

	ct, err := insp.Traits(t)
	if err != nil {
		return nil, err
	}
	if ct.IsCollection() {
		p.Traits = ct
		return p, pl.planCollection(p)
	}
	if t.Kind() == reflect.Struct {
		return p, pl.planMembers(p)
	}
	return nil, common.NewConfigurationError("dpack: type %s (%s) is not supported", t, t.Kind())
}

// scalarOf maps the kinds written as a single wire token
func scalarOf(t reflect.Type) (ScalarKind, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return ScalarBool, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ScalarInt, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return ScalarUint, true
	case reflect.Float32:
		return ScalarFloat32, true
	case reflect.Float64:
		return ScalarFloat64, true
	case reflect.String:
		return ScalarString, true
	case reflect.Slice:
		if traits.IsBinary(t) {
			return ScalarBinary, true
		}
	}
	return 0, false
}

// --------------------------------------------------------------------------
// Polymorphism
// --------------------------------------------------------------------------

// planPolymorphic resolves the serializer of every bound type. Bound types and the
// declared type itself are serialized with the schema minus the bindings of this
// position, so nested item or value schemas still apply to them.
func (pl *planner) planPolymorphic(p *Plan) error {
	p.Strategy = StrategyPolymorphic
	stripped := p.Schema.Strip()

	p.Bound = make(map[byte]*Procedure)
	for _, b := range p.Schema.Bindings() {
		proc, err := pl.nested(b.Type, stripped)
		if err != nil {
			return common.WrapSlot(err, "type code %d", b.Code)
		}
		p.Bound[b.Code] = proc
	}

	if p.Type.Kind() != reflect.Interface {
		base, err := pl.nested(p.Type, stripped)
		if err != nil {
			return err
		}
		p.Base = base
	}
	return nil
}

// --------------------------------------------------------------------------
// Collections
// --------------------------------------------------------------------------

// planCollection picks whole-object or incremental construction. A registered bulk
// constructor wins over an add method; a collection with neither cannot be decoded.
func (pl *planner) planCollection(p *Plan) error {
	ct, s := p.Traits, p.Schema
	ctor, hasCtor := pl.opts.Inspector.Constructor(p.Type)

	if ct.IsDictionary() {
		key, err := pl.nested(ct.KeyType, s.KeySchema())
		if err != nil {
			return common.WrapSlot(err, "key of %s", p.Type)
		}
		value, err := pl.nested(ct.ValueType, s.ValueSchema())
		if err != nil {
			return common.WrapSlot(err, "value of %s", p.Type)
		}
		p.Strategy, p.Key, p.Value = StrategyPairs, key, value
		if ct.Methods != nil && hasCtor {
			p.Constructor = ctor
		} else if !ct.AddMethodPresent {
			return common.NewConfigurationError("dpack: dictionary %s has no Put method and no bulk constructor", p.Type)
		}
		return nil
	}

	elem, err := pl.nested(ct.ElementType, s.ItemSchema())
	if err != nil {
		return common.WrapSlot(err, "item of %s", p.Type)
	}
	p.Elem = elem

	switch {
	case ct.Kind == traits.Array:
		p.Strategy = StrategyWholeObject
	case ct.Methods != nil && hasCtor:
		p.Strategy, p.Constructor = StrategyWholeObject, ctor
	case ct.AddMethodPresent:
		p.Strategy = StrategyIncremental
	default:
		return common.NewConfigurationError("dpack: collection %s has no Add method and no bulk constructor", p.Type)
	}
	return nil
}

// --------------------------------------------------------------------------
// Structs and tuples
// --------------------------------------------------------------------------

func (pl *planner) planTuple(p *Plan) error {
	insp := pl.opts.Inspector
	members, err := insp.Members(p.Type)
	if err != nil {
		return err
	}

	p.Strategy = StrategyTuple
	for i, m := range members {
		s := p.Schema.TupleItemSchema(i + 1)
		if s.IsEmpty() && m.Declaration != nil {
			if s, err = schema.Resolve(m.Declaration, m.Type, traits.ShapeFunc(insp)); err != nil {
				return common.WrapSlot(err, "tuple item %d of %s", i+1, p.Type)
			}
		}
		proc, err := pl.nested(m.Type, s)
		if err != nil {
			return common.WrapSlot(err, "tuple item %d of %s", i+1, p.Type)
		}
		p.Members = append(p.Members, MemberPlan{Name: m.Name, Index: m.Index, Proc: proc})
	}
	return nil
}

func (pl *planner) planMembers(p *Plan) error {
	insp := pl.opts.Inspector
	members, err := insp.Members(p.Type)
	if err != nil {
		return err
	}

	p.Strategy = StrategyMemberWise
	p.Layout = pl.opts.objectMethodOf(p.Type)
	overrides := pl.opts.MemberSchemas[p.Type]
	names := make(map[string]string, len(members))

	for _, m := range members {
		field := p.Type.FieldByIndex(m.Index).Name
		decl := m.Declaration
		if o, ok := overrides[field]; ok {
			decl = o
		}
		s, err := schema.Resolve(decl, m.Type, traits.ShapeFunc(insp))
		if err != nil {
			return common.WrapSlot(err, "member %s.%s", p.Type, field)
		}
		proc, err := pl.nested(m.Type, s)
		if err != nil {
			return common.WrapSlot(err, "member %s.%s", p.Type, field)
		}

		name := m.Name
		if !m.Explicit {
			name = pl.opts.KeyTransformer(name)
		}
		if prev, dup := names[name]; dup && p.Layout == AsMap {
			return common.NewConfigurationError("dpack: members %s and %s of %s share the key %q", prev, field, p.Type, name)
		}
		names[name] = field
		p.Members = append(p.Members, MemberPlan{Name: name, Index: m.Index, OmitEmpty: m.OmitEmpty, Proc: proc})
	}
	return nil
}
