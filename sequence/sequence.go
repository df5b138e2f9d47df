// Package sequence replaces single elements of ordered, read-only sequences
// without disturbing the identity of the remaining elements.
//
// Three container kinds are understood: slices (named slice types keep their
// type), fixed-size arrays, and any type exposing the sequence protocol
//
//	Len() int
//	At(int) E
//	FromSlice([]E) S
//
// where S is the container type itself. FromSlice must build a new container
// of the receiver's kind from the given elements.
package sequence

import (
	"fmt"
	"reflect"
	"sync"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

// Kind describes how to read and rebuild one container type.
type Kind interface {
	// Elem is the element type.
	Elem() reflect.Type
	// Len returns the number of elements.
	Len(seq reflect.Value) int
	// At returns the element at i. i must be in range.
	At(seq reflect.Value, i int) reflect.Value
	// Build returns a new container of the same type holding elems.
	Build(seq reflect.Value, elems []reflect.Value) (reflect.Value, error)
}

var kinds sync.Map // reflect.Type -> Kind (nil entry for non-sequences)

type noKind struct{}

// KindOf resolves the sequence kind of t. Results are cached per type.
func KindOf(t reflect.Type) (Kind, bool) {
	if cached, ok := kinds.Load(t); ok {
		if k, isKind := cached.(Kind); isKind {
			return k, true
		}
		return nil, false
	}
	k := resolve(t)
	if k == nil {
		kinds.LoadOrStore(t, noKind{})
		return nil, false
	}
	actual, _ := kinds.LoadOrStore(t, k)
	return actual.(Kind), true
}

func resolve(t reflect.Type) Kind {
	if k := protocolKindOf(t); k != nil {
		return k
	}
	switch t.Kind() {
	case reflect.Slice:
		return sliceKind{t: t}
	case reflect.Array:
		return arrayKind{t: t}
	default:
		return nil
	}
}

// ReplaceAt returns a new sequence of the same concrete type as seq with the
// element at index replaced by elem. All other elements are carried over as-is.
func ReplaceAt(seq reflect.Value, index int, elem reflect.Value) (out reflect.Value, err error) {
	defer recoverAccess(seq.Type(), &err)
	k, ok := KindOf(seq.Type())
	if !ok {
		return reflect.Value{}, opticserr.PathNotSupported(fmt.Sprintf("index into non-sequence %s", seq.Type()), "")
	}
	n := k.Len(seq)
	if index < 0 || index >= n {
		return reflect.Value{}, opticserr.IndexOutOfRange(index, n)
	}
	elem = Concrete(elem, k.Elem())
	if !elem.IsValid() {
		elem = reflect.Zero(k.Elem())
	}
	if !elem.Type().AssignableTo(k.Elem()) {
		return reflect.Value{}, opticserr.TypeMismatch(k.Elem().String(), elem.Type().String())
	}
	elems := make([]reflect.Value, n)
	for i := 0; i < n; i++ {
		elems[i] = k.At(seq, i)
	}
	elems[index] = elem
	return k.Build(seq, elems)
}

// ElementAt reads the element at index with bounds checking.
func ElementAt(seq reflect.Value, index int) (elem reflect.Value, err error) {
	defer recoverAccess(seq.Type(), &err)
	k, ok := KindOf(seq.Type())
	if !ok {
		return reflect.Value{}, opticserr.PathNotSupported(fmt.Sprintf("index into non-sequence %s", seq.Type()), "")
	}
	n := k.Len(seq)
	if index < 0 || index >= n {
		return reflect.Value{}, opticserr.IndexOutOfRange(index, n)
	}
	return k.At(seq, index), nil
}

// Concrete returns the dynamic value held by an interface-kind v when v
// itself is not assignable to want. A nil interface becomes the invalid
// Value, which callers treat as the zero value.
func Concrete(v reflect.Value, want reflect.Type) reflect.Value {
	if !v.IsValid() || v.Kind() != reflect.Interface || v.Type().AssignableTo(want) {
		return v
	}
	if v.IsNil() {
		return reflect.Value{}
	}
	return v.Elem()
}

// recoverAccess turns a panic raised by a protocol method into
// ReconstructionFailed.
func recoverAccess(t reflect.Type, err *error) {
	if r := recover(); r != nil {
		*err = opticserr.ReconstructionFailed(t.String(), fmt.Errorf("sequence access panicked: %v", r))
	}
}

// ReplaceAtOf is the typed form of ReplaceAt for slice types.
func ReplaceAtOf[S ~[]E, E any](s S, index int, elem E) (S, error) {
	if index < 0 || index >= len(s) {
		return nil, opticserr.IndexOutOfRange(index, len(s))
	}
	result := make(S, len(s))
	copy(result, s)
	result[index] = elem
	return result, nil
}

type sliceKind struct{ t reflect.Type }

func (k sliceKind) Elem() reflect.Type                      { return k.t.Elem() }
func (k sliceKind) Len(seq reflect.Value) int               { return seq.Len() }
func (k sliceKind) At(seq reflect.Value, i int) reflect.Value { return seq.Index(i) }

func (k sliceKind) Build(_ reflect.Value, elems []reflect.Value) (reflect.Value, error) {
	out := reflect.MakeSlice(k.t, len(elems), len(elems))
	for i, e := range elems {
		out.Index(i).Set(e)
	}
	return out, nil
}

type arrayKind struct{ t reflect.Type }

func (k arrayKind) Elem() reflect.Type                      { return k.t.Elem() }
func (k arrayKind) Len(seq reflect.Value) int               { return seq.Len() }
func (k arrayKind) At(seq reflect.Value, i int) reflect.Value { return seq.Index(i) }

func (k arrayKind) Build(_ reflect.Value, elems []reflect.Value) (reflect.Value, error) {
	out := reflect.New(k.t).Elem()
	for i, e := range elems {
		out.Index(i).Set(e)
	}
	return out, nil
}
