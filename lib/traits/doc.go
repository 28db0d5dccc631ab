// Package traits classifies Go types for the serializer builder.
//
// Classify maps a type to its CollectionTraits: Go arrays are arrays, slices are
// lists, maps with struct{} values are sets, other maps are dictionaries. Custom
// types take part through methods: `All() iter.Seq[E]` makes a list (with
// `Add(E)` to fill it and `Len() int` to count it), `Pairs() iter.Seq2[K, V]`
// makes a dictionary (filled with `Put(K, V)`). Element, key and value types of
// `any` make the shape non-generic.
//
// Key Components:
//
//   - Classify: the collection classifier
//   - Inspector: what the builder asks about a type (traits, members, constructors,
//     tuples, enums)
//   - ReflectInspector: the reflect based Inspector reading `dpack` struct tags
//   - Enum: detection of named integer types with a String method
package traits
