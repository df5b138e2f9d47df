// Package path turns accessor expressions into a Path of member and index
// steps leading from a root value to a leaf.
package path

import (
	"go/token"
	"strconv"
	"strings"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

// StepKind discriminates the Step variants.
type StepKind int

const (
	// StepMember accesses a named readable property.
	StepMember StepKind = iota
	// StepIndex accesses one element of an ordered sequence.
	StepIndex
)

// String returns the string representation of the kind.
func (k StepKind) String() string {
	switch k {
	case StepMember:
		return "member"
	case StepIndex:
		return "index"
	default:
		return "unknown"
	}
}

// Step is one hop of a Path. Name is set for StepMember, Index for StepIndex.
type Step struct {
	Kind  StepKind
	Name  string
	Index int
}

// Member creates a property access step.
func Member(name string) Step {
	return Step{Kind: StepMember, Name: name}
}

// Index creates a sequence element step.
func Index(i int) Step {
	return Step{Kind: StepIndex, Index: i}
}

// String renders the step the way it appears in an accessor.
func (s Step) String() string {
	if s.Kind == StepIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return "." + s.Name
}

// Path is an immutable sequence of steps.
type Path struct {
	steps []Step
	expr  string
}

// New creates a Path from steps. The slice is copied.
func New(steps ...Step) Path {
	return Path{steps: append([]Step(nil), steps...)}
}

// Len returns the number of steps.
func (p Path) Len() int {
	return len(p.steps)
}

// Step returns the i-th step.
func (p Path) Step(i int) Step {
	return p.steps[i]
}

// Steps returns a copy of all steps.
func (p Path) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Source returns the expression the path was parsed from, if any.
func (p Path) Source() string {
	return p.expr
}

// String renders the path relative to the root, e.g. "B.CList[1].Value".
func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p.steps {
		if i == 0 && s.Kind == StepMember {
			sb.WriteString(s.Name)
			continue
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Builder constructs a Path through explicit Property/At calls.
type Builder struct {
	steps []Step
	err   error
}

// Root starts a new Builder at the root value.
func Root() *Builder {
	return &Builder{}
}

// Property appends a member step.
func (b *Builder) Property(name string) *Builder {
	if b.err == nil && !token.IsIdentifier(name) {
		b.err = opticserr.PathNotSupported("invalid property name "+strconv.Quote(name), b.render())
	}
	b.steps = append(b.steps, Member(name))
	return b
}

// At appends an index step.
func (b *Builder) At(i int) *Builder {
	if b.err == nil && i < 0 {
		b.err = opticserr.PathNotSupported("negative index "+strconv.Itoa(i), b.render())
	}
	b.steps = append(b.steps, Index(i))
	return b
}

// Build returns the Path or the first error recorded while building.
func (b *Builder) Build() (Path, error) {
	if b.err != nil {
		return Path{}, b.err
	}
	if len(b.steps) == 0 {
		return Path{}, opticserr.PathNotSupported("empty path", "")
	}
	if b.steps[0].Kind != StepMember {
		return Path{}, opticserr.PathNotSupported("index applied to the root", b.render())
	}
	p := New(b.steps...)
	p.expr = p.String()
	return p, nil
}

func (b *Builder) render() string {
	return Path{steps: b.steps}.String()
}
