package lens

import (
	opticserr "github.com/auth-platform/libs/go/optics/errors"
	"github.com/auth-platform/libs/go/optics/sequence"
)

// Lens focuses on one part A of an immutable structure S. Reads and writes
// may fail; writes never modify the source.
type Lens[S, A any] struct {
	get func(S) (A, error)
	set func(S, A) (S, error)
}

// NewLens creates a lens from total get and set functions.
func NewLens[S, A any](get func(S) A, set func(S, A) S) Lens[S, A] {
	return Lens[S, A]{
		get: func(s S) (A, error) { return get(s), nil },
		set: func(s S, a A) (S, error) { return set(s, a), nil },
	}
}

// NewFallibleLens creates a lens from get and set functions that may fail.
func NewFallibleLens[S, A any](get func(S) (A, error), set func(S, A) (S, error)) Lens[S, A] {
	return Lens[S, A]{get: get, set: set}
}

// Get retrieves the focused value.
func (l Lens[S, A]) Get(source S) (A, error) {
	return l.get(source)
}

// Set returns a new structure with the focused value replaced.
func (l Lens[S, A]) Set(source S, value A) (S, error) {
	return l.set(source, value)
}

// Modify applies a function to the focused value.
func (l Lens[S, A]) Modify(source S, fn func(A) A) (S, error) {
	a, err := l.get(source)
	if err != nil {
		var zero S
		return zero, err
	}
	return l.set(source, fn(a))
}

// Compose creates a lens focusing deeper.
func Compose[S, A, B any](outer Lens[S, A], inner Lens[A, B]) Lens[S, B] {
	return Lens[S, B]{
		get: func(s S) (B, error) {
			a, err := outer.get(s)
			if err != nil {
				var zero B
				return zero, err
			}
			return inner.get(a)
		},
		set: func(s S, b B) (S, error) {
			a, err := outer.get(s)
			if err != nil {
				var zero S
				return zero, err
			}
			updated, err := inner.set(a, b)
			if err != nil {
				var zero S
				return zero, err
			}
			return outer.set(s, updated)
		},
	}
}

// Identity creates an identity lens.
func Identity[S any]() Lens[S, S] {
	return Lens[S, S]{
		get: func(s S) (S, error) { return s, nil },
		set: func(_ S, s S) (S, error) { return s, nil },
	}
}

// MapAt creates a lens for a map value at a specific key. Missing keys read
// as defaultVal; writes copy the map.
func MapAt[K comparable, V any](key K, defaultVal V) Lens[map[K]V, V] {
	return NewLens(
		func(m map[K]V) V {
			if v, ok := m[key]; ok {
				return v
			}
			return defaultVal
		},
		func(m map[K]V, v V) map[K]V {
			result := make(map[K]V, len(m)+1)
			for k, val := range m {
				result[k] = val
			}
			result[key] = v
			return result
		},
	)
}

// SliceAt creates a lens for a slice element at a specific index. Reads and
// writes outside the slice fail with IndexOutOfRange.
func SliceAt[T any](index int) Lens[[]T, T] {
	return Lens[[]T, T]{
		get: func(s []T) (T, error) {
			if index < 0 || index >= len(s) {
				var zero T
				return zero, opticserr.IndexOutOfRange(index, len(s))
			}
			return s[index], nil
		},
		set: func(s []T, v T) ([]T, error) {
			return sequence.ReplaceAtOf(s, index, v)
		},
	}
}
