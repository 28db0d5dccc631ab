// Package schema resolves polymorphism declarations.
//
// A polymorphic position (a struct member, the items of a collection, the keys or
// values of a dictionary, the i-th item of a tuple) may declare a closed set of
// concrete types, each bound to a type code between 0 and 127. The code is written
// as the type of a wire extension frame, so the decoder knows which concrete type
// to build.
//
// Key Components:
//
//   - Declaration: the raw description, from `dpack` struct tags or built by hand
//   - Resolve: validates a Declaration against the type it is attached to
//   - PolymorphismSchema: the resolved, immutable tree used by lib/serialization
//   - TypeTable: names for the types referenced by struct tags
//
// Resolution is pure; it performs no I/O and keeps no state.
package schema
