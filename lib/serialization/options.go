package serialization

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/schema"
	"github.com/ValentinKolb/dPack/lib/traits"
)

// --------------------------------------------------------------------------
// Enumerated settings
// --------------------------------------------------------------------------

// EnumMethod selects how enum-like types are written
type EnumMethod uint8

const (
	// ByName writes the String() of the value
	ByName EnumMethod = iota
	// ByUnderlyingValue writes the integer value
	ByUnderlyingValue
)

func (m EnumMethod) String() string {
	if m == ByUnderlyingValue {
		return "value"
	}
	return "name"
}

// ObjectMethod selects the wire layout of structs
type ObjectMethod uint8

const (
	// AsArray writes members positionally, in declaration order
	AsArray ObjectMethod = iota
	// AsMap writes members keyed by their name
	AsMap
)

func (m ObjectMethod) String() string {
	if m == AsMap {
		return "map"
	}
	return "array"
}

// KeyTransformer maps member names to wire keys in map layout
type KeyTransformer func(name string) string

// AsIs keeps member names unchanged
func AsIs(name string) string { return name }

// ToLowerCamel lower cases the first rune of name ("Name" becomes "name").
// Only the first rune changes, so "AA" becomes "aA" and "_A" stays "_A".
func ToLowerCamel(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || !unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a Registry. The zero value is usable: enums by name, structs
// as arrays, member names unchanged, reflection based inspection.
type Options struct {
	EnumMethod   EnumMethod
	ObjectMethod ObjectMethod

	// KeyTransformer applies to member names without an explicit tag name
	KeyTransformer KeyTransformer

	// MaxDepth bounds the nesting of decoded input; wire.DefaultMaxDepth when 0
	MaxDepth int

	// EnumMethods and ObjectMethods override the defaults per type
	EnumMethods   map[reflect.Type]EnumMethod
	ObjectMethods map[reflect.Type]ObjectMethod

	// MemberSchemas declares polymorphism per struct member (type, then field name).
	// An entry replaces the declaration of the field's struct tag.
	MemberSchemas map[reflect.Type]map[string]*schema.Declaration

	// KnownTypes names the types referenced by `dpack` tags. Ignored when Inspector is set.
	KnownTypes *schema.TypeTable

	// Inspector answers the questions about types; a ReflectInspector over
	// KnownTypes when nil
	Inspector traits.Inspector

	// Backend compiles the serialization plans; the interpreting backend when nil
	Backend Backend
}

// SetMemberSchema declares the polymorphism of field of struct type t
func (o *Options) SetMemberSchema(t reflect.Type, field string, decl *schema.Declaration) {
	if o.MemberSchemas == nil {
		o.MemberSchemas = make(map[reflect.Type]map[string]*schema.Declaration)
	}
	if o.MemberSchemas[t] == nil {
		o.MemberSchemas[t] = make(map[string]*schema.Declaration)
	}
	o.MemberSchemas[t][field] = decl
}

// enumMethodOf returns the enum method for t
func (o *Options) enumMethodOf(t reflect.Type) EnumMethod {
	if m, ok := o.EnumMethods[t]; ok {
		return m
	}
	return o.EnumMethod
}

// objectMethodOf returns the object layout for t
func (o *Options) objectMethodOf(t reflect.Type) ObjectMethod {
	if m, ok := o.ObjectMethods[t]; ok {
		return m
	}
	return o.ObjectMethod
}

// withDefaults fills the unset collaborators
func (o Options) withDefaults() Options {
	if o.KeyTransformer == nil {
		o.KeyTransformer = AsIs
	}
	if o.KnownTypes == nil {
		o.KnownTypes = schema.NewTypeTable()
	}
	if o.Inspector == nil {
		o.Inspector = traits.NewReflectInspector(o.KnownTypes)
	}
	if o.Backend == nil {
		o.Backend = planBackend{}
	}
	return o
}

// OptionsFromConfig converts the plain configuration into Options. Type names in
// cfg.KnownTypes must be registered in table beforehand; they are checked here so a
// typo fails at startup rather than at the first build.
func OptionsFromConfig(cfg common.Config, table *schema.TypeTable) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	opts := Options{KnownTypes: table}
	if strings.EqualFold(cfg.EnumMethod, "value") {
		opts.EnumMethod = ByUnderlyingValue
	}
	if strings.EqualFold(cfg.ObjectMethod, "map") {
		opts.ObjectMethod = AsMap
	}
	if strings.EqualFold(cfg.KeyTransform, "lower-camel") {
		opts.KeyTransformer = ToLowerCamel
	}
	opts.MaxDepth = cfg.MaxDepth
	for _, name := range cfg.KnownTypes {
		if _, ok := table.Lookup(name); !ok {
			return Options{}, common.NewConfigurationError("dpack: known type %q is not registered", name)
		}
	}
	return opts, nil
}
