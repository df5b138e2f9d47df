package reconstruct_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
	"github.com/auth-platform/libs/go/optics/immutable"
	"github.com/auth-platform/libs/go/optics/internal/testmodel"
	"github.com/auth-platform/libs/go/optics/reconstruct"
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func newPlanner(opts ...reconstruct.PlannerOption) *reconstruct.Planner {
	return reconstruct.NewPlanner(reconstruct.NewReflectDescriber(testmodel.Registry()), opts...)
}

func TestDescribe_GetterProperties(t *testing.T) {
	d := reconstruct.NewReflectDescriber(testmodel.Registry())
	desc, err := d.Describe(typeOf[*testmodel.B]())
	require.NoError(t, err)

	names := make([]string, len(desc.Properties))
	for i, p := range desc.Properties {
		names[i] = p.Name
		assert.False(t, p.IsField())
	}
	assert.Equal(t, []string{"C", "D", "CList"}, names)
	require.Len(t, desc.Constructors, 1)
	assert.Equal(t, reconstruct.AccessPublic, desc.Constructors[0].Access)

	b := testmodel.NewA("c", "d", "x").B
	p, ok := desc.Property("C")
	require.True(t, ok)
	v, err := p.Get(reflect.ValueOf(b))
	require.NoError(t, err)
	assert.Same(t, b.C(), v.Interface())
}

func TestDescribe_ImplicitLiteralConstructor(t *testing.T) {
	d := reconstruct.NewReflectDescriber(nil)
	desc, err := d.Describe(typeOf[*testmodel.A]())
	require.NoError(t, err)
	require.Len(t, desc.Constructors, 1)
	c := desc.Constructors[0]
	assert.Equal(t, []string{"B"}, c.Params)
	assert.Equal(t, reconstruct.AccessPublic, c.Access)

	b := testmodel.NewB(nil, nil, immutable.List[*testmodel.C]{})
	out, err := c.Call([]reflect.Value{reflect.ValueOf(b)})
	require.NoError(t, err)
	assert.Same(t, b, out.Interface().(*testmodel.A).B)

	point, err := d.Describe(typeOf[testmodel.Point]())
	require.NoError(t, err)
	out, err = point.Constructors[0].Call([]reflect.Value{reflect.ValueOf(1), reflect.ValueOf(2)})
	require.NoError(t, err)
	assert.Equal(t, testmodel.Point{X: 1, Y: 2}, out.Interface())
}

func TestDescribe_TagsAndHiddenState(t *testing.T) {
	d := reconstruct.NewReflectDescriber(nil)

	tagged, err := d.Describe(typeOf[testmodel.Tagged]())
	require.NoError(t, err)
	require.Len(t, tagged.Properties, 1)
	assert.Equal(t, "Title", tagged.Properties[0].Name)
	assert.Empty(t, tagged.Constructors, "hidden fields rule out the literal constructor")

	orphan, err := d.Describe(typeOf[testmodel.Orphan]())
	require.NoError(t, err)
	assert.Empty(t, orphan.Constructors)

	_, err = d.Describe(typeOf[string]())
	assert.ErrorIs(t, err, opticserr.ErrNoReconstructionPath)
}

func TestDescribe_DeclaredProperties(t *testing.T) {
	r := testmodel.Registry()
	require.NoError(t, r.DeclareProperties(typeOf[*testmodel.Ranked](), "Value"))
	d := reconstruct.NewReflectDescriber(r)

	desc, err := d.Describe(typeOf[*testmodel.Ranked]())
	require.NoError(t, err)
	require.Len(t, desc.Properties, 1)
	assert.Equal(t, "Value", desc.Properties[0].Name)

	require.NoError(t, r.DeclareProperties(typeOf[*testmodel.Twins](), "Missing"))
	_, err = d.Describe(typeOf[*testmodel.Twins]())
	assert.ErrorIs(t, err, opticserr.ErrNoReconstructionPath)
}

func TestPlan_SingleInternalConstructor(t *testing.T) {
	plan, err := newPlanner().Plan(typeOf[*testmodel.SingleInternal]())
	require.NoError(t, err)
	assert.Equal(t, reconstruct.AccessInternal, plan.Constructor.Access)
	assert.Equal(t, []reconstruct.Binding{{Param: "value", Property: "Value"}}, plan.Bindings)

	out, err := plan.Rebuild(reflect.ValueOf(testmodel.NewSingleInternalForTest("1")), "Value", reflect.ValueOf("2"))
	require.NoError(t, err)
	assert.Equal(t, "2", out.Interface().(*testmodel.SingleInternal).Value())
}

func TestPlan_PublicBeatsInternalWithExtraParameter(t *testing.T) {
	plan, err := newPlanner().Plan(typeOf[*testmodel.PublicAndInternal]())
	require.NoError(t, err)
	assert.Equal(t, reconstruct.AccessPublic, plan.Constructor.Access)
	assert.Equal(t, []string{"value"}, plan.Constructor.Params)
}

func TestPlan_PublicBeatsEarlierInternal(t *testing.T) {
	plan, err := newPlanner().Plan(typeOf[*testmodel.Ranked]())
	require.NoError(t, err)
	out, err := plan.Rebuild(reflect.ValueOf(testmodel.NewRanked("a")), "Value", reflect.ValueOf("b"))
	require.NoError(t, err)
	assert.Equal(t, "public", out.Interface().(*testmodel.Ranked).Via())
}

func TestPlan_TieBreak(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	plan, err := newPlanner(reconstruct.WithLogger(logger)).Plan(typeOf[*testmodel.Twins]())
	require.NoError(t, err)
	out, err := plan.Rebuild(reflect.ValueOf(testmodel.NewTwins("a")), "Value", reflect.ValueOf("b"))
	require.NoError(t, err)
	assert.Equal(t, "first", out.Interface().(*testmodel.Twins).Via())
	assert.Contains(t, logs.String(), "constructor tie broken by registration order")

	_, err = newPlanner(reconstruct.WithTieBreak(reconstruct.TieBreakError)).Plan(typeOf[*testmodel.Twins]())
	require.ErrorIs(t, err, opticserr.ErrAmbiguousConstructor)
	appErr, ok := opticserr.AsType[*opticserr.Error](err)
	require.True(t, ok)
	ctors, _ := appErr.Detail("constructors")
	assert.Len(t, ctors, 2)
}

func TestPlan_NoReconstructionPath(t *testing.T) {
	_, err := newPlanner().Plan(typeOf[testmodel.Orphan]())
	require.ErrorIs(t, err, opticserr.ErrNoReconstructionPath)

	r := reconstruct.NewRegistry().MustRegister(testmodel.NewC, "text")
	_, err = reconstruct.NewPlanner(reconstruct.NewReflectDescriber(r)).Plan(typeOf[*testmodel.C]())
	require.ErrorIs(t, err, opticserr.ErrNoReconstructionPath)
	appErr, _ := opticserr.AsType[*opticserr.Error](err)
	reason, _ := appErr.Detail("reason")
	assert.Contains(t, reason, "parameter text matches no property")
}

func TestPlan_ExtraParameterRejectedRegardlessOfAccess(t *testing.T) {
	r := reconstruct.NewRegistry()
	require.NoError(t, r.RegisterWithAccess(reconstruct.AccessPublic,
		func(value string, dummy int) *testmodel.C { return testmodel.NewC(value) }, "value", "dummy"))
	_, err := reconstruct.NewPlanner(reconstruct.NewReflectDescriber(r)).Plan(typeOf[*testmodel.C]())
	assert.ErrorIs(t, err, opticserr.ErrNoReconstructionPath)
}

func TestPlan_IncompatibleParameterType(t *testing.T) {
	r := reconstruct.NewRegistry().
		MustRegister(func(x, y int64) testmodel.Point { return testmodel.Point{X: int(x), Y: int(y)} }, "x", "y")
	_, err := reconstruct.NewPlanner(reconstruct.NewReflectDescriber(r)).Plan(typeOf[testmodel.Point]())
	assert.ErrorIs(t, err, opticserr.ErrNoReconstructionPath)
}

func TestPlan_IsMemoized(t *testing.T) {
	p := newPlanner()
	first, err := p.Plan(typeOf[*testmodel.B]())
	require.NoError(t, err)
	second, err := p.Plan(typeOf[*testmodel.B]())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestPlan_ConcurrentCallersShareOnePlan(t *testing.T) {
	p := newPlanner()
	const workers = 32
	plans := make([]*reconstruct.Plan, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plans[i], _ = p.Plan(typeOf[*testmodel.B]())
		}(i)
	}
	wg.Wait()
	for _, plan := range plans {
		assert.Same(t, plans[0], plan)
	}
}

func TestPlan_RebuildPreservesOtherProperties(t *testing.T) {
	a := testmodel.NewA("c", "d", "0", "1")
	plan, err := newPlanner().Plan(typeOf[*testmodel.B]())
	require.NoError(t, err)

	newC := testmodel.NewC("changed")
	out, err := plan.Rebuild(reflect.ValueOf(a.B), "C", reflect.ValueOf(newC))
	require.NoError(t, err)
	b := out.Interface().(*testmodel.B)
	assert.Same(t, newC, b.C())
	assert.Same(t, a.B.D(), b.D())
	assert.Same(t, a.B.CList().At(0), b.CList().At(0))
	assert.Equal(t, "c", a.B.C().Value())
}

func TestPlan_RebuildFailures(t *testing.T) {
	p := newPlanner()

	picky, err := p.Plan(typeOf[*testmodel.Picky]())
	require.NoError(t, err)
	rec, err := testmodel.NewPicky("x")
	require.NoError(t, err)
	_, err = picky.Rebuild(reflect.ValueOf(rec), "Value", reflect.ValueOf(""))
	require.ErrorIs(t, err, opticserr.ErrReconstructionFailed)
	assert.True(t, errors.Is(err, testmodel.ErrEmpty))

	_, err = picky.Rebuild(reflect.ValueOf((*testmodel.Picky)(nil)), "Value", reflect.ValueOf("y"))
	assert.ErrorIs(t, err, opticserr.ErrReconstructionFailed)

	_, err = picky.Rebuild(reflect.ValueOf(rec), "Missing", reflect.ValueOf("y"))
	assert.ErrorIs(t, err, opticserr.ErrPathNotSupported)

	_, err = picky.Rebuild(reflect.ValueOf(rec), "Value", reflect.ValueOf(3))
	assert.ErrorIs(t, err, opticserr.ErrTypeMismatch)
}

func TestPlan_PanickingConstructor(t *testing.T) {
	r := reconstruct.NewRegistry().
		MustRegister(func(value string) *testmodel.C { panic("boom") }, "value")
	plan, err := reconstruct.NewPlanner(reconstruct.NewReflectDescriber(r)).Plan(typeOf[*testmodel.C]())
	require.NoError(t, err)
	_, err = plan.Rebuild(reflect.ValueOf(testmodel.NewC("a")), "Value", reflect.ValueOf("b"))
	require.ErrorIs(t, err, opticserr.ErrReconstructionFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestPlan_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := newPlanner(reconstruct.WithTracer(tp.Tracer("test")))

	_, err := p.PlanContext(context.Background(), typeOf[*testmodel.C]())
	require.NoError(t, err)
	_, err = p.PlanContext(context.Background(), typeOf[*testmodel.C]())
	require.NoError(t, err)
	_, err = p.PlanContext(context.Background(), typeOf[testmodel.Orphan]())
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "reconstruct.plan", spans[0].Name())
	assert.Len(t, spans[1].Events(), 1, "error recorded on the failing span")
}

func TestDescriberFunc(t *testing.T) {
	called := false
	d := reconstruct.DescriberFunc(func(t reflect.Type) (*reconstruct.TypeDescriptor, error) {
		called = true
		return &reconstruct.TypeDescriptor{Type: t}, nil
	})
	_, err := reconstruct.NewPlanner(d).Plan(typeOf[*testmodel.C]())
	assert.ErrorIs(t, err, opticserr.ErrNoReconstructionPath)
	assert.True(t, called)
}
