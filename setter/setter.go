// Package setter compiles a Path over a root type into a reusable function
// that returns a new root with the addressed leaf replaced.
//
// Compiled setters are stateless apart from the shared planner and never
// mutate their arguments. Untouched branches of the object graph are carried
// into the result as-is, so they keep their pointer identity.
package setter

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
	"github.com/auth-platform/libs/go/optics/path"
	"github.com/auth-platform/libs/go/optics/reconstruct"
	"github.com/auth-platform/libs/go/optics/sequence"
)

// Setter returns a copy of root with the leaf addressed by the compiled path
// replaced by leaf.
type Setter func(root, leaf reflect.Value) (reflect.Value, error)

// Getter reads the leaf addressed by the compiled path.
type Getter func(root reflect.Value) (reflect.Value, error)

// Compiler turns paths into setters and getters.
type Compiler struct {
	planner *reconstruct.Planner
	eager   bool
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithEager toggles planning every record type on the path at compile time.
// Enabled by default; when disabled, NoReconstructionPath surfaces on the
// first invocation that needs the missing plan.
func WithEager(eager bool) Option {
	return func(c *Compiler) { c.eager = eager }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for compile spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Compiler) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// NewCompiler creates a compiler planning through planner.
func NewCompiler(planner *reconstruct.Planner, opts ...Option) *Compiler {
	c := &Compiler{
		planner: planner,
		eager:   true,
		logger:  slog.New(slog.DiscardHandler),
		tracer:  noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Planner returns the planner the compiler uses.
func (c *Compiler) Planner() *reconstruct.Planner {
	return c.planner
}

// Compile checks p against root and leaf statically and returns a setter.
//
// Unknown properties and indexing into non-sequences fail with
// PathNotSupported, an unassignable leaf with TypeMismatch and, under eager
// planning, a record without a usable constructor with NoReconstructionPath.
// Steps below an interface-typed property are checked on invocation.
func (c *Compiler) Compile(ctx context.Context, root, leaf reflect.Type, p path.Path) (Setter, error) {
	ctx, span := c.tracer.Start(ctx, "setter.compile", trace.WithAttributes(
		attribute.String("optics.root", root.String()),
		attribute.String("optics.path", p.String())))
	defer span.End()

	prog, err := c.link(ctx, root, p, c.eager)
	if err == nil && prog.leaf != nil && !leaf.AssignableTo(prog.leaf) {
		err = opticserr.TypeMismatch(prog.leaf.String(), leaf.String()).
			WithDetail("path", p.String())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.DebugContext(ctx, "setter compilation failed",
			slog.String("root", root.String()),
			slog.String("path", p.String()),
			slog.Any("error", err))
		return nil, err
	}

	c.logger.DebugContext(ctx, "setter compiled",
		slog.String("root", root.String()),
		slog.String("leaf", leaf.String()),
		slog.String("path", p.String()),
		slog.Bool("dynamic", prog.leaf == nil))

	return func(rootValue, leafValue reflect.Value) (reflect.Value, error) {
		if !rootValue.IsValid() || rootValue.Type() != root {
			return reflect.Value{}, opticserr.TypeMismatch(root.String(), typeString(rootValue))
		}
		return prog.set(0, rootValue, leafValue)
	}, nil
}

// CompileGetter checks p against root and returns a getter together with the
// static leaf type. The leaf type is nil when the path crosses an
// interface-typed property.
func (c *Compiler) CompileGetter(ctx context.Context, root reflect.Type, p path.Path) (Getter, reflect.Type, error) {
	ctx, span := c.tracer.Start(ctx, "setter.compile_getter", trace.WithAttributes(
		attribute.String("optics.root", root.String()),
		attribute.String("optics.path", p.String())))
	defer span.End()

	prog, err := c.link(ctx, root, p, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	return func(rootValue reflect.Value) (reflect.Value, error) {
		if !rootValue.IsValid() || rootValue.Type() != root {
			return reflect.Value{}, opticserr.TypeMismatch(root.String(), typeString(rootValue))
		}
		return prog.get(rootValue)
	}, prog.leaf, nil
}

func typeString(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}

// link resolves every step it can against declared types.
func (c *Compiler) link(ctx context.Context, root reflect.Type, p path.Path, plan bool) (*program, error) {
	if p.Len() == 0 {
		return nil, opticserr.PathNotSupported("path accesses no property", p.Source())
	}
	prog := &program{planner: c.planner, steps: make([]linkedStep, p.Len()), expr: p.String()}
	cur := root
	for i := 0; i < p.Len(); i++ {
		st := linkedStep{Step: p.Step(i)}
		if cur == nil || cur.Kind() == reflect.Interface {
			prog.steps[i] = st
			cur = nil
			continue
		}
		st.typ = cur
		switch st.Kind {
		case path.StepMember:
			if !reconstruct.IsRecord(cur) {
				return nil, opticserr.PathNotSupported(
					fmt.Sprintf("property %s of non-record %s", st.Name, cur), p.Source())
			}
			desc, err := c.planner.Describe(cur)
			if err != nil {
				return nil, err
			}
			prop, ok := desc.Property(st.Name)
			if !ok {
				return nil, opticserr.PathNotSupported(
					fmt.Sprintf("unknown property %s of %s", st.Name, cur), p.Source())
			}
			if plan {
				if _, err := c.planner.PlanContext(ctx, cur); err != nil {
					return nil, err
				}
			}
			st.prop = prop
			st.linked = true
			cur = prop.Type
		case path.StepIndex:
			kind, ok := sequence.KindOf(cur)
			if !ok {
				return nil, opticserr.PathNotSupported(
					fmt.Sprintf("index into non-sequence %s", cur), p.Source())
			}
			st.linked = true
			cur = kind.Elem()
		}
		prog.steps[i] = st
	}
	prog.leaf = cur
	return prog, nil
}
