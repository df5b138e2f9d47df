// Package lens compiles accessor expressions over constructor-only immutable
// records into typed setters, getters and lenses.
//
//	c := lens.New(lens.WithRegistry(registry))
//	setTitle, err := lens.CreateSetter[*State, string](c, "s.Areas[i].Note", path.WithVars(map[string]any{"i": 2}))
//	next, err := setTitle(state, "north field")
//
// A Compiler owns the constructor registry and the plan cache; setters it
// produces are safe for concurrent use.
package lens

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/auth-platform/libs/go/optics/config"
	opticserr "github.com/auth-platform/libs/go/optics/errors"
	"github.com/auth-platform/libs/go/optics/observability"
	"github.com/auth-platform/libs/go/optics/path"
	"github.com/auth-platform/libs/go/optics/plancache"
	"github.com/auth-platform/libs/go/optics/reconstruct"
	"github.com/auth-platform/libs/go/optics/setter"
)

// Setter returns a copy of root with one leaf replaced by value.
type Setter[R, V any] func(root R, value V) (R, error)

// Getter reads one leaf of root.
type Getter[R, V any] func(root R) (V, error)

// Compiler compiles accessor expressions. The zero value is not usable; call New.
type Compiler struct {
	registry *reconstruct.Registry
	planner  *reconstruct.Planner
	setters  *setter.Compiler
	logger   *slog.Logger

	mu        sync.RWMutex
	memo      map[memoKey]setter.Setter
	memoLimit int
}

type memoKey struct {
	root, leaf reflect.Type
	expr       string
}

// Option configures a Compiler.
type Option func(*options)

type options struct {
	cfg       *config.Config
	registry  *reconstruct.Registry
	describer reconstruct.Describer
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   prometheus.Registerer
	tieBreak  *reconstruct.TieBreak
	eager     *bool
	memoLimit *int
}

// WithConfig applies planner, cache, logging and tracing settings.
// Explicit options take precedence regardless of order.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithRegistry sets the constructor registry. Defaults to an empty one.
func WithRegistry(r *reconstruct.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithDescriber replaces the reflection-backed describer.
func WithDescriber(d reconstruct.Describer) Option {
	return func(o *options) { o.describer = d }
}

// WithLogger sets the logger. Defaults to one built from the configuration,
// or a discarding logger without configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracer sets the tracer for compile and planning spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithMetricsRegisterer registers plan cache metrics with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = reg }
}

// WithTieBreak sets the constructor tie policy.
func WithTieBreak(tb reconstruct.TieBreak) Option {
	return func(o *options) { o.tieBreak = &tb }
}

// WithEager toggles compile-time planning of every record on a path.
func WithEager(eager bool) Option {
	return func(o *options) { o.eager = &eager }
}

// WithMemoLimit caps the number of setters memoized by With. Past the cap,
// With compiles without storing. Zero disables the memo.
func WithMemoLimit(n int) Option {
	return func(o *options) { o.memoLimit = &n }
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = config.NewDefault()
	}
	logger := o.logger
	if logger == nil {
		if o.cfg != nil {
			logger = observability.NewLogger(cfg.Logging, nil)
		} else {
			logger = observability.Discard()
		}
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = observability.Tracer(cfg.Tracing)
	}
	tieBreak := reconstruct.TieBreak(cfg.Planner.TieBreak)
	if o.tieBreak != nil {
		tieBreak = *o.tieBreak
	}
	eager := cfg.Planner.Eager
	if o.eager != nil {
		eager = *o.eager
	}
	memoLimit := cfg.Cache.SetterMemoLimit
	if o.memoLimit != nil {
		memoLimit = max(*o.memoLimit, 0)
	}
	registry := o.registry
	if registry == nil {
		registry = reconstruct.NewRegistry()
	}
	describer := o.describer
	if describer == nil {
		describer = reconstruct.NewReflectDescriber(registry)
	}

	var planMetrics, descMetrics *plancache.Metrics
	if o.metrics != nil {
		planMetrics = plancache.NewMetrics(o.metrics, cfg.Cache.MetricsNamespace, "plans")
		descMetrics = plancache.NewMetrics(o.metrics, cfg.Cache.MetricsNamespace, "descriptors")
	}
	plans := plancache.New[*reconstruct.Plan](
		plancache.WithCollapse(cfg.Cache.CollapseMisses),
		plancache.WithMetrics(planMetrics))
	descriptors := plancache.New[*reconstruct.TypeDescriptor](
		plancache.WithCollapse(cfg.Cache.CollapseMisses),
		plancache.WithMetrics(descMetrics))

	planner := reconstruct.NewPlanner(describer,
		reconstruct.WithTieBreak(tieBreak),
		reconstruct.WithLogger(logger),
		reconstruct.WithTracer(tracer),
		reconstruct.WithCaches(plans, descriptors))

	return &Compiler{
		registry: registry,
		planner:  planner,
		setters: setter.NewCompiler(planner,
			setter.WithEager(eager),
			setter.WithLogger(logger),
			setter.WithTracer(tracer)),
		logger:    logger,
		memo:      make(map[memoKey]setter.Setter),
		memoLimit: memoLimit,
	}
}

// Registry returns the constructor registry.
func (c *Compiler) Registry() *reconstruct.Registry {
	return c.registry
}

// Planner returns the reconstruction planner.
func (c *Compiler) Planner() *reconstruct.Planner {
	return c.planner
}

// Register records a constructor; see reconstruct.Registry.Register.
func (c *Compiler) Register(fn any, params ...string) error {
	return c.registry.Register(fn, params...)
}

// MustRegister is Register that panics on error. It returns c for chaining.
func (c *Compiler) MustRegister(fn any, params ...string) *Compiler {
	c.registry.MustRegister(fn, params...)
	return c
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// CreateSetter parses expr and compiles a setter from R to the addressed
// leaf of type V. Unsupported expressions, unknown properties, type
// mismatches and (under eager planning) unreconstructable records fail here
// rather than on invocation.
func CreateSetter[R, V any](c *Compiler, expr string, opts ...path.ParseOption) (Setter[R, V], error) {
	return CreateSetterContext[R, V](context.Background(), c, expr, opts...)
}

// CreateSetterContext is CreateSetter with a parent context for tracing.
func CreateSetterContext[R, V any](ctx context.Context, c *Compiler, expr string, opts ...path.ParseOption) (Setter[R, V], error) {
	p, err := path.Parse(expr, opts...)
	if err != nil {
		return nil, err
	}
	s, err := c.setters.Compile(ctx, typeOf[R](), typeOf[V](), p)
	if err != nil {
		return nil, err
	}
	return typedSetter[R, V](s), nil
}

// CreateSetterFromPath compiles a setter for an already built path.
func CreateSetterFromPath[R, V any](c *Compiler, p path.Path) (Setter[R, V], error) {
	s, err := c.setters.Compile(context.Background(), typeOf[R](), typeOf[V](), p)
	if err != nil {
		return nil, err
	}
	return typedSetter[R, V](s), nil
}

// CreateGetter parses expr and compiles a getter.
func CreateGetter[R, V any](c *Compiler, expr string, opts ...path.ParseOption) (Getter[R, V], error) {
	p, err := path.Parse(expr, opts...)
	if err != nil {
		return nil, err
	}
	return createGetter[R, V](c, p)
}

func createGetter[R, V any](c *Compiler, p path.Path) (Getter[R, V], error) {
	g, leaf, err := c.setters.CompileGetter(context.Background(), typeOf[R](), p)
	if err != nil {
		return nil, err
	}
	want := typeOf[V]()
	if leaf != nil && !leaf.AssignableTo(want) {
		return nil, opticserr.TypeMismatch(want.String(), leaf.String()).WithDetail("path", p.String())
	}
	return func(root R) (V, error) {
		var out V
		v, err := g(reflect.ValueOf(&root).Elem())
		if err != nil {
			return out, err
		}
		if err := assign(reflect.ValueOf(&out).Elem(), v); err != nil {
			return out, err
		}
		return out, nil
	}, nil
}

// Compile parses expr and returns a lens over the addressed leaf.
func Compile[R, V any](c *Compiler, expr string, opts ...path.ParseOption) (Lens[R, V], error) {
	p, err := path.Parse(expr, opts...)
	if err != nil {
		return Lens[R, V]{}, err
	}
	set, err := CreateSetterFromPath[R, V](c, p)
	if err != nil {
		return Lens[R, V]{}, err
	}
	get, err := createGetter[R, V](c, p)
	if err != nil {
		return Lens[R, V]{}, err
	}
	return NewFallibleLens(get, func(root R, value V) (R, error) { return set(root, value) }), nil
}

// With returns a copy of root with the leaf addressed by expr replaced by
// value. The compiled setter is memoized per root type, value type and
// resolved path, so repeated calls from one call site compile once. Captured
// variables are part of the resolved path: a call site fed many distinct
// indices stores one setter per index, up to the memo limit.
func With[R, V any](c *Compiler, root R, expr string, value V, opts ...path.ParseOption) (R, error) {
	s, err := c.memoized(typeOf[R](), typeOf[V](), expr, opts)
	if err != nil {
		var zero R
		return zero, err
	}
	return typedSetter[R, V](s)(root, value)
}

// Memoized returns the number of setters held for With.
func (c *Compiler) Memoized() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memo)
}

// Modify replaces the leaf addressed by expr with fn applied to its current value.
func Modify[R, V any](c *Compiler, root R, expr string, fn func(V) V, opts ...path.ParseOption) (R, error) {
	var zero R
	get, err := CreateGetter[R, V](c, expr, opts...)
	if err != nil {
		return zero, err
	}
	current, err := get(root)
	if err != nil {
		return zero, err
	}
	return With(c, root, expr, fn(current), opts...)
}

func (c *Compiler) memoized(root, leaf reflect.Type, expr string, opts []path.ParseOption) (setter.Setter, error) {
	key := memoKey{root: root, leaf: leaf, expr: expr}
	var p path.Path
	if len(opts) > 0 {
		// Captured variables change the path without changing expr.
		var err error
		if p, err = path.Parse(expr, opts...); err != nil {
			return nil, err
		}
		key.expr = "\x00" + p.String()
	}

	c.mu.RLock()
	s, ok := c.memo[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	if len(opts) == 0 {
		var err error
		if p, err = path.Parse(expr); err != nil {
			return nil, err
		}
	}
	s, err := c.setters.Compile(context.Background(), root, leaf, p)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.memo[key]; ok {
		return existing, nil
	}
	if len(c.memo) >= c.memoLimit {
		return s, nil
	}
	c.memo[key] = s
	c.logger.Debug("setter memoized",
		slog.String("root", root.String()),
		slog.String("path", p.String()),
		slog.Int("memoized", len(c.memo)))
	return s, nil
}

func typedSetter[R, V any](s setter.Setter) Setter[R, V] {
	return func(root R, value V) (R, error) {
		out, err := s(reflect.ValueOf(&root).Elem(), reflect.ValueOf(&value).Elem())
		if err != nil {
			var zero R
			return zero, err
		}
		var result R
		if err := assign(reflect.ValueOf(&result).Elem(), out); err != nil {
			var zero R
			return zero, err
		}
		return result, nil
	}
}

func assign(dst, src reflect.Value) error {
	if !src.IsValid() {
		return nil
	}
	if src.Kind() == reflect.Interface && !src.Type().AssignableTo(dst.Type()) {
		if src.IsNil() {
			return nil
		}
		src = src.Elem()
	}
	if !src.Type().AssignableTo(dst.Type()) {
		return opticserr.TypeMismatch(dst.Type().String(), src.Type().String())
	}
	dst.Set(src)
	return nil
}
