package traits

import "reflect"

// RegisterListConstructor registers fn as the bulk constructor of the collection
// type C. It is needed for collections that can be iterated but have no Add method.
func RegisterListConstructor[C, E any](r *ReflectInspector, fn func(items []E) C) {
	r.RegisterConstructor(reflect.TypeFor[C](), func(items, _ []reflect.Value) reflect.Value {
		typed := make([]E, len(items))
		for i, v := range items {
			typed[i] = unwrap[E](v)
		}
		return reflect.ValueOf(fn(typed))
	})
}

// RegisterDictionaryConstructor registers fn as the bulk constructor of the
// dictionary type C. keys and values have the same length.
func RegisterDictionaryConstructor[C, K, V any](r *ReflectInspector, fn func(keys []K, values []V) C) {
	r.RegisterConstructor(reflect.TypeFor[C](), func(items, values []reflect.Value) reflect.Value {
		keys := make([]K, len(items))
		vals := make([]V, len(values))
		for i := range items {
			keys[i] = unwrap[K](items[i])
			vals[i] = unwrap[V](values[i])
		}
		return reflect.ValueOf(fn(keys, vals))
	})
}

// unwrap converts v to T. A nil interface value yields the zero T.
func unwrap[T any](v reflect.Value) T {
	var zero T
	if !v.IsValid() {
		return zero
	}
	if t, ok := v.Interface().(T); ok {
		return t
	}
	return zero
}
