// Package testmodel holds constructor-only record types shared by tests.
package testmodel

import (
	"errors"

	"github.com/auth-platform/libs/go/optics/immutable"
	"github.com/auth-platform/libs/go/optics/reconstruct"
)

// A is rebuilt through its implicit composite literal.
type A struct {
	B *B
}

// B exposes read-only properties through getters.
type B struct {
	c     *C                 `lens:"C"`
	d     *D                 `lens:"D"`
	cList immutable.List[*C] `lens:"CList"`
}

func NewB(c *C, d *D, cList immutable.List[*C]) *B {
	return &B{c: c, d: d, cList: cList}
}

func (b *B) C() *C                    { return b.c }
func (b *B) D() *D                    { return b.d }
func (b *B) CList() immutable.List[*C] { return b.cList }

type C struct {
	value string `lens:"Value"`
}

func NewC(value string) *C { return &C{value: value} }

func (c *C) Value() string { return c.value }

type D struct {
	Value string
}

func NewD(value string) *D { return &D{Value: value} }

// NewA builds the A{B{C, D, CList}} fixture. Each element of list becomes a C.
func NewA(c, d string, list ...string) *A {
	items := make([]*C, len(list))
	for i, v := range list {
		items[i] = NewC(v)
	}
	return &A{B: NewB(NewC(c), NewD(d), immutable.FromSlice(items))}
}

// SingleInternal has exactly one unexported constructor.
type SingleInternal struct {
	value string `lens:"Value"`
}

func newSingleInternal(value string) *SingleInternal {
	return &SingleInternal{value: value}
}

func NewSingleInternalForTest(value string) *SingleInternal {
	return newSingleInternal(value)
}

func (s *SingleInternal) Value() string { return s.value }

// PublicAndInternal has a public constructor and an internal one taking an
// extra parameter.
type PublicAndInternal struct {
	value string `lens:"Value"`
}

func newPublicAndInternal(value string, _ int) *PublicAndInternal {
	return &PublicAndInternal{value: value}
}

func NewPublicAndInternal(value string) *PublicAndInternal {
	return &PublicAndInternal{value: value}
}

func (p *PublicAndInternal) Value() string { return p.value }

// Ranked has both an internal and a public constructor matching its property;
// the internal one is registered first.
type Ranked struct {
	value string `lens:"Value"`
	via   string
}

func newRanked(value string) *Ranked { return &Ranked{value: value, via: "internal"} }

func NewRanked(value string) *Ranked { return &Ranked{value: value, via: "public"} }

func (r *Ranked) Value() string { return r.value }

// Via names the constructor that built r.
func (r *Ranked) Via() string { return r.via }

// Twins has two public constructors matching its property.
type Twins struct {
	value string `lens:"Value"`
	via   string
}

func NewTwins(value string) *Twins      { return &Twins{value: value, via: "first"} }
func NewTwinsAgain(value string) *Twins { return &Twins{value: value, via: "second"} }

func (t *Twins) Value() string { return t.value }
func (t *Twins) Via() string   { return t.via }

// Orphan has a hidden field and no constructor.
type Orphan struct {
	Value  string
	secret int
}

// Picky rejects empty values.
type Picky struct {
	value string `lens:"Value"`
}

var ErrEmpty = errors.New("testmodel: empty value")

func NewPicky(value string) (*Picky, error) {
	if value == "" {
		return nil, ErrEmpty
	}
	return &Picky{value: value}, nil
}

func (p *Picky) Value() string { return p.value }

// Collections carries every supported sequence kind.
type Collections struct {
	List  immutable.List[string]
	Slice []string
	Array [3]string
	Nodes []*C
}

// Tagged renames and hides exported fields.
type Tagged struct {
	Renamed string `lens:"Title"`
	Skipped string `lens:"-"`
}

// Point is a value-typed record.
type Point struct {
	X, Y int
}

// Shape holds an interface-typed property.
type Shape struct {
	Origin Point
	Meta   any
}

// Registry returns a registry with every fixture constructor registered.
func Registry() *reconstruct.Registry {
	return reconstruct.NewRegistry().
		MustRegister(NewB, "c", "d", "cList").
		MustRegister(NewC, "value").
		MustRegister(newSingleInternal, "value").
		MustRegister(newPublicAndInternal, "value", "dummy").
		MustRegister(NewPublicAndInternal, "value").
		MustRegister(newRanked, "value").
		MustRegister(NewRanked, "value").
		MustRegister(NewTwins, "value").
		MustRegister(NewTwinsAgain, "value").
		MustRegister(NewPicky, "value")
}
