// Package reconstruct discovers how to rebuild a record with one property
// changed, by matching a constructor's parameters to the record's readable
// properties.
package reconstruct

import (
	"fmt"
	"reflect"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

// Access ranks constructors. Lower values are more accessible.
type Access int

const (
	AccessPublic Access = iota
	AccessInternal
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessInternal:
		return "internal"
	case AccessPrivate:
		return "private"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Property is one public readable property of a record type.
type Property struct {
	Name string
	Type reflect.Type

	field  []int
	getter string
}

// IsField reports whether the property is read directly from a struct field.
func (p Property) IsField() bool {
	return p.getter == ""
}

// Get reads the property from rec, which must be of the record type the
// property was discovered on. Nil pointers and getter panics are reported as
// ReconstructionFailed.
func (p Property) Get(rec reflect.Value) (out reflect.Value, err error) {
	if rec.Kind() == reflect.Pointer && rec.IsNil() {
		return reflect.Value{}, opticserr.ReconstructionFailed(rec.Type().String(),
			fmt.Errorf("nil %s while reading %s", rec.Type(), p.Name))
	}
	if p.getter == "" {
		return reflect.Indirect(rec).FieldByIndex(p.field), nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = opticserr.ReconstructionFailed(rec.Type().String(),
				fmt.Errorf("getter %s panicked: %v", p.getter, r))
		}
	}()
	m := rec.MethodByName(p.getter)
	if !m.IsValid() {
		// Pointer-receiver getter on a struct value.
		ptr := reflect.New(rec.Type())
		ptr.Elem().Set(rec)
		m = ptr.MethodByName(p.getter)
	}
	return m.Call(nil)[0], nil
}

// Constructor is a registered function producing a record.
type Constructor struct {
	Name   string
	Params []string
	Access Access

	fn           reflect.Value
	returnsError bool
	literal      *literalInit
}

// Result returns the record type the constructor produces.
func (c *Constructor) Result() reflect.Type {
	if c.literal != nil {
		return c.literal.t
	}
	return c.fn.Type().Out(0)
}

// ParamType returns the declared type of the i-th parameter.
func (c *Constructor) ParamType(i int) reflect.Type {
	if c.literal != nil {
		return c.literal.fieldTypes[i]
	}
	return c.fn.Type().In(i)
}

// Call invokes the constructor. Returned errors and panics are wrapped as
// ReconstructionFailed.
func (c *Constructor) Call(args []reflect.Value) (out reflect.Value, err error) {
	typeName := c.Result().String()
	if len(args) != len(c.Params) {
		return reflect.Value{}, opticserr.ReconstructionFailed(typeName,
			fmt.Errorf("%s takes %d arguments, got %d", c.Name, len(c.Params), len(args)))
	}
	if c.literal != nil {
		return c.literal.build(args), nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = opticserr.ReconstructionFailed(typeName, fmt.Errorf("%s panicked: %v", c.Name, r))
		}
	}()
	results := c.fn.Call(args)
	if c.returnsError && !results[1].IsNil() {
		return reflect.Value{}, opticserr.ReconstructionFailed(typeName, results[1].Interface().(error))
	}
	return results[0], nil
}

func (c *Constructor) String() string {
	return fmt.Sprintf("%s(%v) [%s]", c.Name, c.Params, c.Access)
}

// literalInit builds a struct through a composite literal of its fields.
type literalInit struct {
	t          reflect.Type
	fields     [][]int
	fieldTypes []reflect.Type
}

func (l *literalInit) build(args []reflect.Value) reflect.Value {
	st := l.t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	ptr := reflect.New(st)
	for i, idx := range l.fields {
		ptr.Elem().FieldByIndex(idx).Set(args[i])
	}
	if l.t.Kind() == reflect.Pointer {
		return ptr
	}
	return ptr.Elem()
}

// TypeDescriptor lists the properties and constructors of a record type.
type TypeDescriptor struct {
	Type         reflect.Type
	Properties   []Property
	Constructors []*Constructor
}

// Property looks up a property by its exact name.
func (d *TypeDescriptor) Property(name string) (Property, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Describer supplies type descriptors to the planner.
type Describer interface {
	Describe(t reflect.Type) (*TypeDescriptor, error)
}

// DescriberFunc adapts a function to the Describer interface.
type DescriberFunc func(t reflect.Type) (*TypeDescriptor, error)

// Describe calls f(t).
func (f DescriberFunc) Describe(t reflect.Type) (*TypeDescriptor, error) {
	return f(t)
}

// IsRecord reports whether t is a struct or a pointer to a struct.
func IsRecord(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
