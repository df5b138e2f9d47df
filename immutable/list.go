// Package immutable provides a persistent ordered list usable as a record
// property. Every operation returns a new list and never touches the receiver.
package immutable

import (
	"encoding/json"
	"fmt"
	"iter"

	"gopkg.in/yaml.v3"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

// List is an ordered read-only sequence. The zero value is an empty list.
//
// List implements the sequence protocol (Len, At, FromSlice), so compiled
// setters can replace a single element of it.
type List[T any] struct {
	items []T
}

// Of creates a list holding the given elements.
func Of[T any](elements ...T) List[T] {
	return FromSlice(elements)
}

// FromSlice creates a list holding a copy of items.
func FromSlice[T any](items []T) List[T] {
	if len(items) == 0 {
		return List[T]{}
	}
	cp := make([]T, len(items))
	copy(cp, items)
	return List[T]{items: cp}
}

// FromSlice builds a new list of the receiver's type from items.
func (l List[T]) FromSlice(items []T) List[T] {
	return FromSlice(items)
}

// Len returns the number of elements.
func (l List[T]) Len() int {
	return len(l.items)
}

// IsEmpty returns true if the list has no elements.
func (l List[T]) IsEmpty() bool {
	return len(l.items) == 0
}

// At returns the element at index i. It panics if i is out of range,
// like indexing a slice.
func (l List[T]) At(i int) T {
	return l.items[i]
}

// Get returns the element at index i and whether i was in range.
func (l List[T]) Get(i int) (T, bool) {
	if i < 0 || i >= len(l.items) {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// SetAt returns a list with the element at index i replaced.
func (l List[T]) SetAt(i int, v T) (List[T], error) {
	if i < 0 || i >= len(l.items) {
		return l, opticserr.IndexOutOfRange(i, len(l.items))
	}
	cp := l.Slice()
	cp[i] = v
	return List[T]{items: cp}, nil
}

// Add returns a list with v appended.
func (l List[T]) Add(v T) List[T] {
	cp := make([]T, len(l.items), len(l.items)+1)
	copy(cp, l.items)
	return List[T]{items: append(cp, v)}
}

// Insert returns a list with v inserted before index i. i may equal Len.
func (l List[T]) Insert(i int, v T) (List[T], error) {
	if i < 0 || i > len(l.items) {
		return l, opticserr.IndexOutOfRange(i, len(l.items)+1)
	}
	cp := make([]T, 0, len(l.items)+1)
	cp = append(cp, l.items[:i]...)
	cp = append(cp, v)
	cp = append(cp, l.items[i:]...)
	return List[T]{items: cp}, nil
}

// RemoveAt returns a list without the element at index i.
func (l List[T]) RemoveAt(i int) (List[T], error) {
	if i < 0 || i >= len(l.items) {
		return l, opticserr.IndexOutOfRange(i, len(l.items))
	}
	cp := make([]T, 0, len(l.items)-1)
	cp = append(cp, l.items[:i]...)
	cp = append(cp, l.items[i+1:]...)
	return List[T]{items: cp}, nil
}

// Map applies fn to every element and collects the results.
func Map[T, U any](l List[T], fn func(int, T) U) List[U] {
	if l.IsEmpty() {
		return List[U]{}
	}
	out := make([]U, len(l.items))
	for i, v := range l.items {
		out[i] = fn(i, v)
	}
	return List[U]{items: out}
}

// All iterates over index/element pairs.
func (l List[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, v := range l.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Slice returns a copy of the elements.
func (l List[T]) Slice() []T {
	cp := make([]T, len(l.items))
	copy(cp, l.items)
	return cp
}

// String formats the list like a slice.
func (l List[T]) String() string {
	return fmt.Sprint(l.items)
}

// MarshalYAML encodes the list as a YAML sequence.
func (l List[T]) MarshalYAML() (any, error) {
	if l.items == nil {
		return []T{}, nil
	}
	return l.items, nil
}

// UnmarshalYAML decodes a YAML sequence.
func (l *List[T]) UnmarshalYAML(node *yaml.Node) error {
	var items []T
	if err := node.Decode(&items); err != nil {
		return err
	}
	*l = List[T]{items: items}
	return nil
}

// MarshalJSON encodes the list as a JSON array.
func (l List[T]) MarshalJSON() ([]byte, error) {
	if l.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.items)
}

// UnmarshalJSON decodes a JSON array.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = List[T]{items: items}
	return nil
}
