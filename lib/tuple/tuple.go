// Package tuple provides positional value groups. A struct that embeds Marker is
// serialized as a fixed-arity array of its fields instead of an object, and its
// fields are addressed by 1-based position in polymorphism schemas.
package tuple

// Marker flags the embedding struct as a tuple. It carries no data and is not
// counted as an item.
type Marker struct{}

// IsTuple implements the tuple detection of lib/traits
func (Marker) IsTuple() {}

type Tuple2[T1, T2 any] struct {
	Marker
	Item1 T1
	Item2 T2
}

type Tuple3[T1, T2, T3 any] struct {
	Marker
	Item1 T1
	Item2 T2
	Item3 T3
}

type Tuple4[T1, T2, T3, T4 any] struct {
	Marker
	Item1 T1
	Item2 T2
	Item3 T3
	Item4 T4
}

type Tuple5[T1, T2, T3, T4, T5 any] struct {
	Marker
	Item1 T1
	Item2 T2
	Item3 T3
	Item4 T4
	Item5 T5
}

type Tuple6[T1, T2, T3, T4, T5, T6 any] struct {
	Marker
	Item1 T1
	Item2 T2
	Item3 T3
	Item4 T4
	Item5 T5
	Item6 T6
}

type Tuple7[T1, T2, T3, T4, T5, T6, T7 any] struct {
	Marker
	Item1 T1
	Item2 T2
	Item3 T3
	Item4 T4
	Item5 T5
	Item6 T6
	Item7 T7
}

// Of2 creates a Tuple2
func Of2[T1, T2 any](a T1, b T2) Tuple2[T1, T2] {
	return Tuple2[T1, T2]{Item1: a, Item2: b}
}

// Of3 creates a Tuple3
func Of3[T1, T2, T3 any](a T1, b T2, c T3) Tuple3[T1, T2, T3] {
	return Tuple3[T1, T2, T3]{Item1: a, Item2: b, Item3: c}
}

// Of4 creates a Tuple4
func Of4[T1, T2, T3, T4 any](a T1, b T2, c T3, d T4) Tuple4[T1, T2, T3, T4] {
	return Tuple4[T1, T2, T3, T4]{Item1: a, Item2: b, Item3: c, Item4: d}
}
