package serialization

import (
	"reflect"

	"github.com/ValentinKolb/dPack/lib/schema"
)

// Serializer is the typed view of a Procedure
type Serializer[T any] struct {
	proc *Procedure
}

// For returns the serializer of T in r, built with the empty schema
func For[T any](r *Registry) (*Serializer[T], error) {
	return ForSchema[T](r, schema.Default)
}

// ForSchema returns the serializer of T in r for the polymorphism schema s
func ForSchema[T any](r *Registry, s *schema.PolymorphismSchema) (*Serializer[T], error) {
	p, err := r.GetOrBuild(reflect.TypeFor[T](), s)
	if err != nil {
		return nil, err
	}
	return &Serializer[T]{proc: p}, nil
}

// MustFor is For that panics on error. It is meant for package level variables.
func MustFor[T any](r *Registry) *Serializer[T] {
	s, err := For[T](r)
	if err != nil {
		panic(err)
	}
	return s
}

// Procedure returns the untyped procedure
func (s *Serializer[T]) Procedure() *Procedure { return s.proc }

// Marshal encodes v
func (s *Serializer[T]) Marshal(v T) ([]byte, error) {
	w := getWriter()
	defer putWriter(w)
	if err := s.proc.Pack(w, reflect.ValueOf(&v).Elem()); err != nil {
		return nil, err
	}
	return append([]byte(nil), w.Bytes()...), nil
}

// Unmarshal decodes b, which must hold exactly one value
func (s *Serializer[T]) Unmarshal(b []byte) (T, error) {
	var v T
	err := s.proc.Unmarshal(b, &v)
	return v, err
}

// Marshal encodes v with the default registry
func Marshal[T any](v T) ([]byte, error) {
	s, err := For[T](DefaultRegistry())
	if err != nil {
		return nil, err
	}
	return s.Marshal(v)
}

// Unmarshal decodes b with the default registry
func Unmarshal[T any](b []byte) (T, error) {
	s, err := For[T](DefaultRegistry())
	if err != nil {
		var zero T
		return zero, err
	}
	return s.Unmarshal(b)
}
