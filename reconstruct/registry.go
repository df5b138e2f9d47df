package reconstruct

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Registry is a thread-safe table of constructors and explicit property
// lists, keyed by record type. Registration order is preserved per type.
type Registry struct {
	mu         sync.RWMutex
	ctors      map[reflect.Type][]*Constructor
	properties map[reflect.Type][]string
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		ctors:      make(map[reflect.Type][]*Constructor),
		properties: make(map[reflect.Type][]string),
	}
}

// Register records fn as a constructor of its first result type. params
// names every parameter of fn in order. Accessibility is derived from the
// function symbol: exported functions are public, unexported top-level
// functions internal, and closures or method values private.
func (r *Registry) Register(fn any, params ...string) error {
	c, err := newConstructor(fn, params)
	if err != nil {
		return err
	}
	c.Access = accessOf(c.Name)
	r.add(c)
	return nil
}

// RegisterWithAccess is Register with an explicit accessibility.
func (r *Registry) RegisterWithAccess(access Access, fn any, params ...string) error {
	if access < AccessPublic || access > AccessPrivate {
		return opticserr.InvalidRegistration(fmt.Sprintf("unknown access level %d", int(access)))
	}
	c, err := newConstructor(fn, params)
	if err != nil {
		return err
	}
	c.Access = access
	r.add(c)
	return nil
}

// MustRegister is Register that panics on error. It returns r for chaining.
func (r *Registry) MustRegister(fn any, params ...string) *Registry {
	if err := r.Register(fn, params...); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(c *Constructor) {
	t := c.Result()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[t] = append(r.ctors[t], c)
}

// DeclareProperties replaces property discovery for t with the given names.
// Each name must resolve to an exported field or an exported zero-argument
// getter of t; that is checked when t is described.
func (r *Registry) DeclareProperties(t reflect.Type, names ...string) error {
	if t == nil || !IsRecord(t) {
		return opticserr.InvalidRegistration(fmt.Sprintf("properties can only be declared for records, got %v", t))
	}
	if err := checkNames(names); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[t] = append([]string(nil), names...)
	return nil
}

// Constructors returns the constructors registered for t in registration order.
func (r *Registry) Constructors(t reflect.Type) []*Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Constructor(nil), r.ctors[t]...)
}

// Properties returns the property list declared for t, if any.
func (r *Registry) Properties(t reflect.Type) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names, ok := r.properties[t]
	if !ok {
		return nil, false
	}
	return append([]string(nil), names...), true
}

// Has returns true if any constructor is registered for t.
func (r *Registry) Has(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ctors[t]) > 0
}

// Types returns every type with at least one registered constructor.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]reflect.Type, 0, len(r.ctors))
	for t := range r.ctors {
		types = append(types, t)
	}
	return types
}

// Len returns the total number of registered constructors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, cs := range r.ctors {
		n += len(cs)
	}
	return n
}

func newConstructor(fn any, params []string) (*Constructor, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, opticserr.InvalidRegistration(fmt.Sprintf("constructor must be a non-nil function, got %T", fn))
	}
	ft := v.Type()
	name := funcName(v)
	if ft.IsVariadic() {
		return nil, opticserr.InvalidRegistration(fmt.Sprintf("constructor %s must not be variadic", name))
	}
	if ft.NumIn() != len(params) {
		return nil, opticserr.InvalidRegistration(fmt.Sprintf(
			"constructor %s has %d parameters but %d names were given", name, ft.NumIn(), len(params)))
	}
	returnsError := false
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		returnsError = true
	default:
		return nil, opticserr.InvalidRegistration(fmt.Sprintf("constructor %s must return T or (T, error)", name))
	}
	if !IsRecord(ft.Out(0)) {
		return nil, opticserr.InvalidRegistration(fmt.Sprintf(
			"constructor %s must return a struct or a pointer to one, got %s", name, ft.Out(0)))
	}
	if err := checkNames(params); err != nil {
		return nil, err
	}
	return &Constructor{
		Name:         name,
		Params:       append([]string(nil), params...),
		fn:           v,
		returnsError: returnsError,
	}, nil
}

func checkNames(names []string) error {
	seen := make(map[string]string, len(names))
	for _, n := range names {
		if n == "" {
			return opticserr.InvalidRegistration("empty name")
		}
		key := strings.ToLower(n)
		if prev, ok := seen[key]; ok {
			return opticserr.InvalidRegistration(fmt.Sprintf("names %q and %q collide case-insensitively", prev, n))
		}
		seen[key] = n
	}
	return nil
}

func funcName(v reflect.Value) string {
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return v.Type().String()
}

// accessOf classifies a runtime symbol such as "example.com/m/pkg.NewB",
// "pkg.newB", "pkg.init.func1" or "pkg.(*T).Make-fm".
func accessOf(symbol string) Access {
	if i := strings.IndexByte(symbol, '['); i >= 0 {
		if j := strings.LastIndexByte(symbol, ']'); j > i {
			symbol = symbol[:i] + symbol[j+1:]
		}
	}
	if i := strings.LastIndexByte(symbol, '/'); i >= 0 {
		symbol = symbol[i+1:]
	}
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		symbol = symbol[i+1:]
	}
	if symbol == "" || strings.ContainsAny(symbol, ".-(") {
		return AccessPrivate
	}
	first, _ := utf8.DecodeRuneInString(symbol)
	if unicode.IsUpper(first) {
		return AccessPublic
	}
	return AccessInternal
}
