package traits

import "reflect"

// Kind is the coarse collection shape of a type. It decides the wire framing:
// Dictionary uses a map header, every other collection an array header.
type Kind uint8

const (
	None Kind = iota
	Array
	List
	Dictionary
	Set
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case Array:
		return "array"
	case List:
		return "list"
	case Dictionary:
		return "dictionary"
	case Set:
		return "set"
	default:
		return "none"
	}
}

// DetailedKind refines Kind with the generic / non-generic distinction and with
// the capabilities of custom collection types.
type DetailedKind uint8

const (
	NotCollection DetailedKind = iota
	ArrayKind
	GenericList
	NonGenericList
	GenericSet
	GenericDictionary
	NonGenericDictionary
	GenericEnumerable    // custom type with All
	GenericCollection    // custom type with All and Len
	NonGenericEnumerable // custom type with All over any
	NonGenericCollection // custom type with All over any and Len
)

var detailedNames = map[DetailedKind]string{
	NotCollection:        "not a collection",
	ArrayKind:            "array",
	GenericList:          "generic list",
	NonGenericList:       "non-generic list",
	GenericSet:           "generic set",
	GenericDictionary:    "generic dictionary",
	NonGenericDictionary: "non-generic dictionary",
	GenericEnumerable:    "generic enumerable",
	GenericCollection:    "generic collection",
	NonGenericEnumerable: "non-generic enumerable",
	NonGenericCollection: "non-generic collection",
}

// String returns the string representation of a DetailedKind.
func (d DetailedKind) String() string {
	if s, ok := detailedNames[d]; ok {
		return s
	}
	return "unknown"
}

// IsGeneric reports whether the element types of the shape are statically known
func (d DetailedKind) IsGeneric() bool {
	switch d {
	case NonGenericList, NonGenericDictionary, NonGenericEnumerable, NonGenericCollection:
		return false
	}
	return true
}

// CollectionTraits is the classification of a type. It is computed once per
// type and never changes.
type CollectionTraits struct {
	Kind         Kind
	DetailedKind DetailedKind

	// ElementType is the item type of lists, sets and arrays
	ElementType reflect.Type

	// KeyType and ValueType are set for dictionaries
	KeyType   reflect.Type
	ValueType reflect.Type

	// AddMethodPresent reports whether items can be added to an existing instance.
	// Collections without it need a bulk constructor to be decoded.
	AddMethodPresent bool

	// CountPresent reports whether the item count is known without iterating
	CountPresent bool

	// Methods of custom collection types, nil for built-in shapes
	Methods *CollectionMethods
}

// CollectionMethods holds the method names used to iterate and fill a custom
// collection. Methods are looked up on the pointer type, so pointer receivers work.
type CollectionMethods struct {
	Iterate string // All or Pairs
	Add     string // Add or Put, empty when missing
	Count   string // Len, empty when missing
}

// IsCollection reports whether the traits describe any collection shape
func (c CollectionTraits) IsCollection() bool { return c.Kind != None }

// IsDictionary reports whether items are written as key/value pairs
func (c CollectionTraits) IsDictionary() bool { return c.Kind == Dictionary }
