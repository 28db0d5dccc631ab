/*
Package serialization builds MessagePack serializers for Go types.

A Registry builds one Procedure per (type, polymorphism schema) the first time it
is asked for it and caches it from then on. Building runs in two steps: a planner
classifies the type and picks a strategy (scalar, enum, polymorphic, collection,
struct, tuple), resolving the serializers of every nested type through the same
registry, and a Backend compiles the resulting Plan into pack and unpack functions.

Recursive types are supported: the procedure of a type is registered as a
placeholder before its dependencies are built, so a reference back to it resolves
to the placeholder. All placeholders claimed by one build are published together
once the whole build succeeds, and removed together when it fails.

	reg := serialization.NewRegistry(serialization.Options{ObjectMethod: serialization.AsMap})
	s, err := serialization.For[Order](reg)
	b, err := s.Marshal(order)
	order, err = s.Unmarshal(b)

Polymorphism is declared per position with a schema.Declaration, either through a
`dpack:",known=1:Circle|2:Square"` struct tag or with Options.SetMemberSchema. A
value of a bound type is written as an extension frame whose type code is the code
it is bound to.
*/
package serialization
