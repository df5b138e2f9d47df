package reconstruct

import (
	"fmt"
	"reflect"
	"strings"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

// TagName is the struct tag that renames, hides or exposes record properties.
const TagName = "lens"

// ReflectDescriber describes record types through reflection, taking
// constructors and explicit property lists from a Registry.
//
// Property discovery, unless the registry declares a list for the type:
//   - exported fields are properties named after the field, or after the
//     lens tag when present; `lens:"-"` hides a field;
//   - unexported fields tagged `lens:"Name"` are properties read through the
//     exported zero-argument method Name;
//   - other unexported fields are hidden state.
//
// A type without registered constructors whose state is entirely exported
// fields receives an implicit public composite-literal constructor.
type ReflectDescriber struct {
	registry *Registry
}

// NewReflectDescriber creates a describer backed by registry. A nil registry
// behaves like an empty one.
func NewReflectDescriber(registry *Registry) *ReflectDescriber {
	if registry == nil {
		registry = NewRegistry()
	}
	return &ReflectDescriber{registry: registry}
}

// Registry returns the backing registry.
func (d *ReflectDescriber) Registry() *Registry {
	return d.registry
}

// Describe implements Describer.
func (d *ReflectDescriber) Describe(t reflect.Type) (*TypeDescriptor, error) {
	if t == nil || !IsRecord(t) {
		return nil, opticserr.NoReconstructionPath(fmt.Sprint(t), "not a struct or pointer to struct")
	}

	var (
		props       []Property
		allFields   bool
		hiddenState bool
		err         error
	)
	if names, ok := d.registry.Properties(t); ok {
		props, err = declaredProperties(t, names)
	} else {
		props, allFields, hiddenState, err = discoverProperties(t)
	}
	if err != nil {
		return nil, err
	}
	if err := checkPropertyNames(t, props); err != nil {
		return nil, err
	}

	desc := &TypeDescriptor{
		Type:         t,
		Properties:   props,
		Constructors: d.registry.Constructors(t),
	}
	if len(desc.Constructors) == 0 && allFields && !hiddenState {
		desc.Constructors = []*Constructor{literalConstructor(t, props)}
	}
	return desc, nil
}

func discoverProperties(t reflect.Type) (props []Property, allFields, hiddenState bool, err error) {
	st := structOf(t)
	allFields = true
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag, tagged := f.Tag.Lookup(TagName)
		tag = strings.TrimSpace(strings.Split(tag, ",")[0])
		if tag == "-" {
			hiddenState = true
			continue
		}
		if f.IsExported() {
			name := f.Name
			if tagged && tag != "" {
				name = tag
			}
			props = append(props, Property{Name: name, Type: f.Type, field: f.Index})
			continue
		}
		if !tagged || tag == "" {
			hiddenState = true
			continue
		}
		p, ok := getterProperty(t, tag)
		if !ok {
			return nil, false, false, opticserr.NoReconstructionPath(t.String(),
				fmt.Sprintf("field %s is tagged %q but %s has no method %s() with one result", f.Name, tag, t, tag))
		}
		props = append(props, p)
		allFields = false
	}
	return props, allFields, hiddenState, nil
}

func declaredProperties(t reflect.Type, names []string) ([]Property, error) {
	st := structOf(t)
	props := make([]Property, 0, len(names))
	for _, name := range names {
		if f, ok := st.FieldByName(name); ok && f.IsExported() && len(f.Index) == 1 {
			props = append(props, Property{Name: name, Type: f.Type, field: f.Index})
			continue
		}
		p, ok := getterProperty(t, name)
		if !ok {
			return nil, opticserr.NoReconstructionPath(t.String(),
				fmt.Sprintf("declared property %s is neither an exported field nor a getter", name))
		}
		props = append(props, p)
	}
	return props, nil
}

// getterProperty resolves an exported zero-argument, single-result method
// on t, or on *t when t is a struct value type.
func getterProperty(t reflect.Type, name string) (Property, bool) {
	m, ok := t.MethodByName(name)
	if !ok && t.Kind() == reflect.Struct {
		m, ok = reflect.PointerTo(t).MethodByName(name)
	}
	if !ok || !m.IsExported() || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
		return Property{}, false
	}
	return Property{Name: name, Type: m.Type.Out(0), getter: name}, true
}

func checkPropertyNames(t reflect.Type, props []Property) error {
	seen := make(map[string]string, len(props))
	for _, p := range props {
		key := strings.ToLower(p.Name)
		if prev, ok := seen[key]; ok {
			return opticserr.NoReconstructionPath(t.String(),
				fmt.Sprintf("properties %s and %s collide case-insensitively", prev, p.Name))
		}
		seen[key] = p.Name
	}
	return nil
}

func literalConstructor(t reflect.Type, props []Property) *Constructor {
	params := make([]string, len(props))
	init := &literalInit{
		t:          t,
		fields:     make([][]int, len(props)),
		fieldTypes: make([]reflect.Type, len(props)),
	}
	for i, p := range props {
		params[i] = p.Name
		init.fields[i] = p.field
		init.fieldTypes[i] = p.Type
	}
	return &Constructor{
		Name:    t.String() + "{}",
		Params:  params,
		Access:  AccessPublic,
		literal: init,
	}
}

func structOf(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}
