package setter

import (
	"fmt"
	"reflect"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
	"github.com/auth-platform/libs/go/optics/path"
	"github.com/auth-platform/libs/go/optics/reconstruct"
	"github.com/auth-platform/libs/go/optics/sequence"
)

// linkedStep is a path step with whatever could be resolved at compile time.
// When linked is false the step follows an interface-typed property and is
// resolved against the dynamic type on every invocation.
type linkedStep struct {
	path.Step
	linked bool
	typ    reflect.Type
	prop   reconstruct.Property
}

type program struct {
	planner *reconstruct.Planner
	steps   []linkedStep
	leaf    reflect.Type
	expr    string
}

// set rebuilds cur for steps[i:] from the leaf back up.
func (p *program) set(i int, cur, leaf reflect.Value) (reflect.Value, error) {
	if i == len(p.steps) {
		return leaf, nil
	}
	st := p.steps[i]
	holder, err := p.concrete(cur, st)
	if err != nil {
		return reflect.Value{}, err
	}

	switch st.Kind {
	case path.StepMember:
		prop, err := p.property(holder, st)
		if err != nil {
			return reflect.Value{}, err
		}
		childOld, err := prop.Get(holder)
		if err != nil {
			return reflect.Value{}, err
		}
		childNew, err := p.set(i+1, childOld, leaf)
		if err != nil {
			return reflect.Value{}, err
		}
		if identical(childOld, childNew) {
			return cur, nil
		}
		plan, err := p.planner.Plan(holder.Type())
		if err != nil {
			return reflect.Value{}, err
		}
		return plan.Rebuild(holder, prop.Name, childNew)

	default:
		childOld, err := sequence.ElementAt(holder, st.Index)
		if err != nil {
			return reflect.Value{}, withPath(err, p.expr)
		}
		childNew, err := p.set(i+1, childOld, leaf)
		if err != nil {
			return reflect.Value{}, err
		}
		if identical(childOld, childNew) {
			return cur, nil
		}
		return sequence.ReplaceAt(holder, st.Index, childNew)
	}
}

func (p *program) get(root reflect.Value) (reflect.Value, error) {
	cur := root
	for _, st := range p.steps {
		holder, err := p.concrete(cur, st)
		if err != nil {
			return reflect.Value{}, err
		}
		if st.Kind == path.StepMember {
			prop, err := p.property(holder, st)
			if err != nil {
				return reflect.Value{}, err
			}
			if cur, err = prop.Get(holder); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		if cur, err = sequence.ElementAt(holder, st.Index); err != nil {
			return reflect.Value{}, withPath(err, p.expr)
		}
	}
	return cur, nil
}

// concrete unwraps interface values and rejects nil records on the path.
func (p *program) concrete(cur reflect.Value, st linkedStep) (reflect.Value, error) {
	if cur.Kind() == reflect.Interface {
		if cur.IsNil() {
			return reflect.Value{}, opticserr.ReconstructionFailed(cur.Type().String(),
				fmt.Errorf("nil interface before %s in %s", st, p.expr))
		}
		cur = cur.Elem()
	}
	if !cur.IsValid() {
		return reflect.Value{}, opticserr.ReconstructionFailed("nil",
			fmt.Errorf("nil value before %s in %s", st, p.expr))
	}
	if cur.Kind() == reflect.Pointer && cur.IsNil() {
		return reflect.Value{}, opticserr.ReconstructionFailed(cur.Type().String(),
			fmt.Errorf("nil %s before %s in %s", cur.Type(), st, p.expr))
	}
	return cur, nil
}

// property returns the linked property, or resolves it against the dynamic
// type of holder for steps below an interface.
func (p *program) property(holder reflect.Value, st linkedStep) (reconstruct.Property, error) {
	if st.linked && holder.Type() == st.typ {
		return st.prop, nil
	}
	if !reconstruct.IsRecord(holder.Type()) {
		return reconstruct.Property{}, opticserr.PathNotSupported(
			fmt.Sprintf("property %s of non-record %s", st.Name, holder.Type()), p.expr)
	}
	desc, err := p.planner.Describe(holder.Type())
	if err != nil {
		return reconstruct.Property{}, err
	}
	prop, ok := desc.Property(st.Name)
	if !ok {
		return reconstruct.Property{}, opticserr.PathNotSupported(
			fmt.Sprintf("unknown property %s of %s", st.Name, holder.Type()), p.expr)
	}
	return prop, nil
}

func withPath(err error, expr string) error {
	if e, ok := opticserr.AsType[*opticserr.Error](err); ok {
		return e.WithDetail("path", expr)
	}
	return err
}

// identical reports whether b is the same instance as a. Reference kinds
// compare by pointer and comparable values by equality; structs and arrays
// that are not comparable are checked element by element.
func identical(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Kind() == reflect.Interface {
		if a.IsNil() {
			return b.Kind() == reflect.Interface && b.IsNil()
		}
		a = a.Elem()
	}
	if b.Kind() == reflect.Interface {
		if b.IsNil() {
			return false
		}
		b = b.Elem()
	}
	if a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		return a.IsNil() == b.IsNil() && a.Len() == b.Len() && a.Pointer() == b.Pointer()
	case reflect.Func:
		return a.IsNil() && b.IsNil()
	case reflect.Struct:
		if a.Comparable() && b.Comparable() {
			return a.Equal(b)
		}
		for i := 0; i < a.NumField(); i++ {
			if !identical(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		if a.Comparable() && b.Comparable() {
			return a.Equal(b)
		}
		for i := 0; i < a.Len(); i++ {
			if !identical(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	}
	return a.Comparable() && b.Comparable() && a.Equal(b)
}
