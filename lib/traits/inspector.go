package traits

import (
	"reflect"
	"strings"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/schema"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// Logger is the logger of the traits package
var Logger = logger.GetLogger("traits")

// TagName is the struct tag read by ReflectInspector
const TagName = "dpack"

// --------------------------------------------------------------------------
// Interface
// --------------------------------------------------------------------------

// Member is one serializable field of a struct
type Member struct {
	// Name is the member name taken from the tag, or the field name
	Name string

	// Explicit is set when Name comes from the tag. Key transformers leave explicit
	// names untouched.
	Explicit bool

	// Index is the field index for reflect.Value.FieldByIndex
	Index []int

	Type      reflect.Type
	OmitEmpty bool

	// Declaration is the polymorphism declared in the tag, nil when there is none
	Declaration *schema.Declaration
}

// BulkConstructor builds a complete collection from decoded items. For
// dictionaries items holds the keys and values the values; for other collections
// values is nil.
type BulkConstructor func(items, values []reflect.Value) reflect.Value

// Inspector answers the questions the serializer builder asks about a type.
// Implementations must be safe for concurrent use.
type Inspector interface {
	// Traits classifies the collection shape of t
	Traits(t reflect.Type) (CollectionTraits, error)

	// Members lists the serializable members of a struct, or the items of a tuple
	Members(t reflect.Type) ([]Member, error)

	// Constructor returns the bulk constructor registered for t
	Constructor(t reflect.Type) (BulkConstructor, bool)

	// IsTuple reports whether t is serialized as a positional tuple
	IsTuple(t reflect.Type) bool

	// Enum reports whether t is an enum-like type
	Enum(t reflect.Type) (EnumInfo, bool)
}

// ShapeFunc adapts an Inspector to the shape lookup of schema resolution
func ShapeFunc(insp Inspector) schema.ShapeFunc {
	return func(t reflect.Type) (schema.Shape, error) {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if insp.IsTuple(t) {
			members, err := insp.Members(t)
			if err != nil {
				return schema.Shape{}, err
			}
			items := make([]reflect.Type, len(members))
			for i, m := range members {
				items[i] = m.Type
			}
			return schema.Shape{Tuple: items}, nil
		}
		ct, err := insp.Traits(t)
		if err != nil {
			return schema.Shape{}, err
		}
		if ct.IsDictionary() {
			return schema.Shape{Key: ct.KeyType, Value: ct.ValueType, Dictionary: true}, nil
		}
		return schema.Shape{Item: ct.ElementType}, nil
	}
}

// --------------------------------------------------------------------------
// Reflection based implementation
// --------------------------------------------------------------------------

type cached[T any] struct {
	val T
	err error
}

// ReflectInspector implements Inspector with package reflect. Results are
// memoized per type.
type ReflectInspector struct {
	knownTypes   *schema.TypeTable
	constructors *xsync.MapOf[reflect.Type, BulkConstructor]
	traits       *xsync.MapOf[reflect.Type, cached[CollectionTraits]]
	members      *xsync.MapOf[reflect.Type, cached[[]Member]]
}

// NewReflectInspector creates an inspector resolving tag type names in knownTypes.
// knownTypes may be nil when no tag declares polymorphism.
func NewReflectInspector(knownTypes *schema.TypeTable) *ReflectInspector {
	if knownTypes == nil {
		knownTypes = schema.NewTypeTable()
	}
	return &ReflectInspector{
		knownTypes:   knownTypes,
		constructors: xsync.NewMapOf[reflect.Type, BulkConstructor](),
		traits:       xsync.NewMapOf[reflect.Type, cached[CollectionTraits]](),
		members:      xsync.NewMapOf[reflect.Type, cached[[]Member]](),
	}
}

// KnownTypes returns the table used to resolve type names in tags
func (r *ReflectInspector) KnownTypes() *schema.TypeTable { return r.knownTypes }

// RegisterConstructor sets the bulk constructor of t
func (r *ReflectInspector) RegisterConstructor(t reflect.Type, c BulkConstructor) {
	r.constructors.Store(t, c)
}

// Constructor implements Inspector
func (r *ReflectInspector) Constructor(t reflect.Type) (BulkConstructor, bool) {
	return r.constructors.Load(t)
}

// Traits implements Inspector
func (r *ReflectInspector) Traits(t reflect.Type) (CollectionTraits, error) {
	c, _ := r.traits.LoadOrCompute(t, func() cached[CollectionTraits] {
		ct, err := Classify(t)
		if err == nil && ct.IsCollection() {
			Logger.Debugf("classified %s as %s", t, ct.DetailedKind)
		}
		return cached[CollectionTraits]{ct, err}
	})
	return c.val, c.err
}

// IsTuple implements Inspector
func (r *ReflectInspector) IsTuple(t reflect.Type) bool { return IsTuple(t) }

// Enum implements Inspector
func (r *ReflectInspector) Enum(t reflect.Type) (EnumInfo, bool) { return Enum(t) }

// Members implements Inspector. Exported fields are members in declaration order;
// a `dpack:"-"` tag excludes a field. Tuples list their items and ignore tags
// except for the polymorphism options.
func (r *ReflectInspector) Members(t reflect.Type) ([]Member, error) {
	c, _ := r.members.LoadOrCompute(t, func() cached[[]Member] {
		m, err := r.collectMembers(t)
		return cached[[]Member]{m, err}
	})
	return c.val, c.err
}

func (r *ReflectInspector) collectMembers(t reflect.Type) ([]Member, error) {
	if t.Kind() != reflect.Struct {
		return nil, common.NewConfigurationError("dpack: %s has no members", t)
	}
	tuple := IsTuple(t)

	var out []Member
	seen := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || (f.Anonymous && f.Type.Implements(tupleIface) && isEmptyStruct(f.Type)) {
			continue
		}
		tag, hasTag := f.Tag.Lookup(TagName)
		if tag == "-" {
			continue
		}

		m := Member{Name: f.Name, Index: f.Index, Type: f.Type}
		var opts []string
		if hasTag {
			parts := strings.Split(tag, ",")
			if parts[0] != "" && !tuple {
				m.Name, m.Explicit = parts[0], true
			}
			for _, p := range parts[1:] {
				switch p = strings.TrimSpace(p); p {
				case "":
				case "omitempty":
					m.OmitEmpty = true
				default:
					opts = append(opts, p)
				}
			}
		}

		decl, err := schema.DeclarationFromTag(opts, r.knownTypes)
		if err != nil {
			return nil, common.WrapSlot(err, "member %s.%s", t, f.Name)
		}
		m.Declaration = decl

		if prev, dup := seen[m.Name]; dup {
			return nil, common.NewConfigurationError("dpack: %s has two members named %q (%s and %s)", t, m.Name, prev, f.Name)
		}
		seen[m.Name] = f.Name
		out = append(out, m)
	}
	return out, nil
}
