package traits

import (
	"reflect"

	"github.com/ValentinKolb/dPack/lib/common"
)

var (
	tupleIface   = reflect.TypeFor[interface{ IsTuple() }]()
	notCollected = CollectionTraits{Kind: None, DetailedKind: NotCollection}
)

// IsAny reports whether t is the empty interface
func IsAny(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.NumMethod() == 0
}

// IsBinary reports whether t is a byte slice, which is a scalar and not a list
func IsBinary(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

// IsTuple reports whether t is a struct embedding tuple.Marker
func IsTuple(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(tupleIface)
}

// Classify computes the collection traits of t.
//
// Arrays are classified first, then built-in slice and map shapes, then custom
// types exposing Pairs or All. A custom dictionary wins over a custom enumerable
// as long as both are generic or both are non-generic. Shapes that cannot be
// ordered that way are a configuration error.
func Classify(t reflect.Type) (CollectionTraits, error) {
	pairs, hasPairs := pairsMethod(t)
	all, hasAll := allMethod(t)

	switch t.Kind() {
	case reflect.Array:
		return CollectionTraits{Kind: Array, DetailedKind: ArrayKind, ElementType: t.Elem()}, nil

	case reflect.Slice:
		if IsBinary(t) {
			return notCollected, nil
		}
		if hasPairs {
			return notCollected, common.NewConfigurationError(
				"dpack: %s is both a list and a dictionary (Pairs method)", t)
		}
		dk := GenericList
		if IsAny(t.Elem()) {
			dk = NonGenericList
		}
		return CollectionTraits{Kind: List, DetailedKind: dk, ElementType: t.Elem(), AddMethodPresent: true, CountPresent: true}, nil

	case reflect.Map:
		if isEmptyStruct(t.Elem()) {
			return CollectionTraits{Kind: Set, DetailedKind: GenericSet, ElementType: t.Key(), AddMethodPresent: true, CountPresent: true}, nil
		}
		dk := GenericDictionary
		if IsAny(t.Key()) && IsAny(t.Elem()) {
			dk = NonGenericDictionary
		}
		return CollectionTraits{Kind: Dictionary, DetailedKind: dk, KeyType: t.Key(), ValueType: t.Elem(), AddMethodPresent: true, CountPresent: true}, nil

	case reflect.Pointer, reflect.Interface:
		return notCollected, nil
	}

	switch {
	case hasPairs && hasAll:
		pairsGeneric := !(IsAny(pairs.key) && IsAny(pairs.value))
		allGeneric := !IsAny(all.elem)
		if pairsGeneric != allGeneric {
			return notCollected, common.NewConfigurationError(
				"dpack: %s mixes a generic and a non-generic collection shape (All and Pairs)", t)
		}
		return pairs.traits(), nil
	case hasPairs:
		return pairs.traits(), nil
	case hasAll:
		return all.traits(), nil
	}
	return notCollected, nil
}

func isEmptyStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() == 0
}

// --------------------------------------------------------------------------
// Method detection for custom collections
// --------------------------------------------------------------------------

type enumerable struct {
	elem   reflect.Type
	hasAdd bool
	hasLen bool
}

func (e enumerable) traits() CollectionTraits {
	dk := GenericEnumerable
	switch {
	case IsAny(e.elem) && e.hasLen:
		dk = NonGenericCollection
	case IsAny(e.elem):
		dk = NonGenericEnumerable
	case e.hasLen:
		dk = GenericCollection
	}
	m := &CollectionMethods{Iterate: "All"}
	if e.hasAdd {
		m.Add = "Add"
	}
	if e.hasLen {
		m.Count = "Len"
	}
	return CollectionTraits{Kind: List, DetailedKind: dk, ElementType: e.elem, AddMethodPresent: e.hasAdd, CountPresent: e.hasLen, Methods: m}
}

type dictionary struct {
	key, value reflect.Type
	hasPut     bool
	hasLen     bool
}

func (d dictionary) traits() CollectionTraits {
	dk := GenericDictionary
	if IsAny(d.key) && IsAny(d.value) {
		dk = NonGenericDictionary
	}
	m := &CollectionMethods{Iterate: "Pairs"}
	if d.hasPut {
		m.Add = "Put"
	}
	if d.hasLen {
		m.Count = "Len"
	}
	return CollectionTraits{Kind: Dictionary, DetailedKind: dk, KeyType: d.key, ValueType: d.value, AddMethodPresent: d.hasPut, CountPresent: d.hasLen, Methods: m}
}

// seqYield returns the parameter types of the yield function of an iterator type
// (iter.Seq or iter.Seq2)
func seqYield(seq reflect.Type, arity int) ([]reflect.Type, bool) {
	if seq.Kind() != reflect.Func || seq.NumIn() != 1 || seq.NumOut() != 0 {
		return nil, false
	}
	yield := seq.In(0)
	if yield.Kind() != reflect.Func || yield.NumIn() != arity || yield.NumOut() != 1 || yield.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	out := make([]reflect.Type, arity)
	for i := range out {
		out[i] = yield.In(i)
	}
	return out, true
}

// method returns the method of *t with the given number of parameters
// (receiver excluded) and results
func method(t reflect.Type, name string, in, out int) (reflect.Method, bool) {
	m, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok || m.Type.NumIn() != in+1 || m.Type.NumOut() != out {
		return reflect.Method{}, false
	}
	return m, true
}

func hasLen(t reflect.Type) bool {
	m, ok := method(t, "Len", 0, 1)
	return ok && m.Type.Out(0).Kind() == reflect.Int
}

// allMethod detects `All() iter.Seq[E]` with optional `Add(E)` and `Len() int`
func allMethod(t reflect.Type) (enumerable, bool) {
	m, ok := method(t, "All", 0, 1)
	if !ok {
		return enumerable{}, false
	}
	params, ok := seqYield(m.Type.Out(0), 1)
	if !ok {
		return enumerable{}, false
	}
	e := enumerable{elem: params[0], hasLen: hasLen(t)}
	if add, ok := method(t, "Add", 1, 0); ok && add.Type.In(1) == e.elem {
		e.hasAdd = true
	}
	return e, true
}

// pairsMethod detects `Pairs() iter.Seq2[K, V]` with optional `Put(K, V)` and `Len() int`
func pairsMethod(t reflect.Type) (dictionary, bool) {
	m, ok := method(t, "Pairs", 0, 1)
	if !ok {
		return dictionary{}, false
	}
	params, ok := seqYield(m.Type.Out(0), 2)
	if !ok {
		return dictionary{}, false
	}
	d := dictionary{key: params[0], value: params[1], hasLen: hasLen(t)}
	if put, ok := method(t, "Put", 2, 0); ok && put.Type.In(1) == d.key && put.Type.In(2) == d.value {
		d.hasPut = true
	}
	return d, true
}
