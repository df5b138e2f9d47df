package reconstruct

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
	"github.com/auth-platform/libs/go/optics/plancache"
	"github.com/auth-platform/libs/go/optics/sequence"
)

// TieBreak decides between equally accessible matching constructors.
type TieBreak string

const (
	// TieBreakFirstDeclared picks the constructor registered first.
	TieBreakFirstDeclared TieBreak = "first_declared"
	// TieBreakError fails planning with AmbiguousConstructor.
	TieBreakError TieBreak = "error"
)

// Binding maps one constructor parameter to the property that feeds it.
type Binding struct {
	Param    string
	Property string
}

// Plan is the recipe for rebuilding one record type. Plans are immutable
// and shared between goroutines.
type Plan struct {
	Type        reflect.Type
	Constructor *Constructor
	Bindings    []Binding

	props []Property // in binding order
}

// Property returns the planned property with the given name.
func (p *Plan) Property(name string) (Property, bool) {
	for _, prop := range p.props {
		if prop.Name == name {
			return prop, true
		}
	}
	return Property{}, false
}

// Rebuild reads every property of rec in binding order, substitutes value for
// the property called name and invokes the constructor.
func (p *Plan) Rebuild(rec reflect.Value, name string, value reflect.Value) (reflect.Value, error) {
	if rec.Kind() == reflect.Pointer && rec.IsNil() {
		return reflect.Value{}, opticserr.ReconstructionFailed(p.Type.String(),
			fmt.Errorf("nil %s on the path", p.Type))
	}
	args := make([]reflect.Value, len(p.props))
	replaced := false
	for i, prop := range p.props {
		paramType := p.Constructor.ParamType(i)
		arg := reflect.New(paramType).Elem()
		if prop.Name == name {
			replaced = true
			value = sequence.Concrete(value, paramType)
			if value.IsValid() {
				if !value.Type().AssignableTo(paramType) {
					return reflect.Value{}, opticserr.TypeMismatch(paramType.String(), value.Type().String())
				}
				arg.Set(value)
			}
		} else {
			cur, err := prop.Get(rec)
			if err != nil {
				return reflect.Value{}, err
			}
			arg.Set(cur)
		}
		args[i] = arg
	}
	if !replaced {
		return reflect.Value{}, opticserr.PathNotSupported(
			fmt.Sprintf("unknown property %s of %s", name, p.Type), "")
	}
	return p.Constructor.Call(args)
}

// Planner selects reconstruction plans and memoizes them per type.
type Planner struct {
	describer   Describer
	plans       *plancache.Cache[*Plan]
	descriptors *plancache.Cache[*TypeDescriptor]
	tieBreak    TieBreak
	logger      *slog.Logger
	tracer      trace.Tracer
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithTieBreak sets the tie policy. Defaults to TieBreakFirstDeclared.
func WithTieBreak(tb TieBreak) PlannerOption {
	return func(p *Planner) { p.tieBreak = tb }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer sets the tracer used for plan-building spans.
func WithTracer(tracer trace.Tracer) PlannerOption {
	return func(p *Planner) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithCaches supplies the plan and descriptor caches, typically to attach
// metrics. Nil caches are replaced by fresh ones.
func WithCaches(plans *plancache.Cache[*Plan], descriptors *plancache.Cache[*TypeDescriptor]) PlannerOption {
	return func(p *Planner) {
		if plans != nil {
			p.plans = plans
		}
		if descriptors != nil {
			p.descriptors = descriptors
		}
	}
}

// NewPlanner creates a planner over describer.
func NewPlanner(describer Describer, opts ...PlannerOption) *Planner {
	p := &Planner{
		describer:   describer,
		plans:       plancache.New[*Plan](),
		descriptors: plancache.New[*TypeDescriptor](),
		tieBreak:    TieBreakFirstDeclared,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Describe returns the memoized descriptor of t. Its constructor list is the
// one known when t was first described; Plan re-reads constructors until a
// plan for t has been built.
func (p *Planner) Describe(t reflect.Type) (*TypeDescriptor, error) {
	return p.descriptors.GetOrCompute(t, func() (*TypeDescriptor, error) {
		return p.describer.Describe(t)
	})
}

// Plan returns the memoized plan for t.
func (p *Planner) Plan(t reflect.Type) (*Plan, error) {
	return p.PlanContext(context.Background(), t)
}

// PlanContext is Plan with a parent context for tracing.
func (p *Planner) PlanContext(ctx context.Context, t reflect.Type) (*Plan, error) {
	return p.plans.GetOrCompute(t, func() (*Plan, error) {
		return p.build(ctx, t)
	})
}

func (p *Planner) build(ctx context.Context, t reflect.Type) (*Plan, error) {
	ctx, span := p.tracer.Start(ctx, "reconstruct.plan",
		trace.WithAttributes(attribute.String("optics.type", t.String())))
	defer span.End()

	plan, err := p.selectPlan(ctx, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.DebugContext(ctx, "no reconstruction plan",
			slog.String("type", t.String()),
			slog.Any("error", err))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("optics.constructor", plan.Constructor.Name),
		attribute.String("optics.access", plan.Constructor.Access.String()))
	p.logger.DebugContext(ctx, "reconstruction plan built",
		slog.String("type", t.String()),
		slog.String("constructor", plan.Constructor.Name),
		slog.String("access", plan.Constructor.Access.String()),
		slog.Int("properties", len(plan.Bindings)))
	return plan, nil
}

type candidate struct {
	ctor     *Constructor
	bindings []Binding
	props    []Property
}

func (p *Planner) selectPlan(ctx context.Context, t reflect.Type) (*Plan, error) {
	// Constructors are read from the describer on every build so that a
	// registration made after an earlier failed plan is seen. Builds only
	// repeat until one succeeds.
	desc, err := p.describer.Describe(t)
	if err != nil {
		return nil, err
	}
	p.descriptors.Store(t, desc)
	if len(desc.Constructors) == 0 {
		return nil, opticserr.NoReconstructionPath(t.String(), "no constructors registered")
	}

	var (
		best    []candidate
		rejects []string
	)
	for _, c := range desc.Constructors {
		cand, reason := match(desc, c)
		if reason != "" {
			rejects = append(rejects, fmt.Sprintf("%s: %s", c.Name, reason))
			continue
		}
		switch {
		case len(best) == 0 || c.Access < best[0].ctor.Access:
			best = []candidate{cand}
		case c.Access == best[0].ctor.Access:
			best = append(best, cand)
		}
	}
	if len(best) == 0 {
		return nil, opticserr.NoReconstructionPath(t.String(), strings.Join(rejects, "; "))
	}
	if len(best) > 1 {
		names := make([]string, len(best))
		for i, c := range best {
			names[i] = c.ctor.Name
		}
		if p.tieBreak == TieBreakError {
			return nil, opticserr.AmbiguousConstructor(t.String(), names)
		}
		p.logger.WarnContext(ctx, "constructor tie broken by registration order",
			slog.String("type", t.String()),
			slog.Any("candidates", names),
			slog.String("selected", names[0]))
	}

	chosen := best[0]
	return &Plan{
		Type:        t,
		Constructor: chosen.ctor,
		Bindings:    chosen.bindings,
		props:       chosen.props,
	}, nil
}

// match checks that the parameter names of c biject case-insensitively with
// the properties of desc and that every property type is assignable to its
// parameter. It returns a non-empty reason on mismatch.
func match(desc *TypeDescriptor, c *Constructor) (candidate, string) {
	if c.Result() != desc.Type {
		return candidate{}, fmt.Sprintf("returns %s", c.Result())
	}
	if len(c.Params) != len(desc.Properties) {
		return candidate{}, fmt.Sprintf("has %d parameters for %d properties", len(c.Params), len(desc.Properties))
	}
	byName := make(map[string]int, len(desc.Properties))
	for i, prop := range desc.Properties {
		byName[strings.ToLower(prop.Name)] = i
	}
	used := make([]bool, len(desc.Properties))
	cand := candidate{
		ctor:     c,
		bindings: make([]Binding, len(c.Params)),
		props:    make([]Property, len(c.Params)),
	}
	for i, param := range c.Params {
		j, ok := byName[strings.ToLower(param)]
		if !ok {
			return candidate{}, fmt.Sprintf("parameter %s matches no property", param)
		}
		if used[j] {
			return candidate{}, fmt.Sprintf("parameter %s binds property %s twice", param, desc.Properties[j].Name)
		}
		used[j] = true
		prop := desc.Properties[j]
		if !prop.Type.AssignableTo(c.ParamType(i)) {
			return candidate{}, fmt.Sprintf("property %s of type %s is not assignable to parameter %s of type %s",
				prop.Name, prop.Type, param, c.ParamType(i))
		}
		cand.bindings[i] = Binding{Param: param, Property: prop.Name}
		cand.props[i] = prop
	}
	return cand, ""
}
