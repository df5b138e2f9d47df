package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/auth-platform/libs/go/optics/config"
)

// TracerName is the instrumentation scope of compiler spans.
const TracerName = "github.com/auth-platform/libs/go/optics"

// Tracer returns the tracer for cfg: the global provider's tracer when
// tracing is enabled, a no-op tracer otherwise.
func Tracer(cfg config.TracingConfig) trace.Tracer {
	if !cfg.Enabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return otel.Tracer(TracerName)
}

// NewTracerProvider creates an SDK tracer provider that reports every ended
// span to logger at debug level. Callers own shutdown.
func NewTracerProvider(cfg config.TracingConfig, logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(&logSpanProcessor{logger: logger, service: cfg.ServiceName}),
	)
}

// logSpanProcessor logs ended spans.
type logSpanProcessor struct {
	logger  *slog.Logger
	service string
}

func (p *logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := []any{
		slog.String("service", p.service),
		slog.String("span", s.Name()),
		slog.String("trace_id", s.SpanContext().TraceID().String()),
		slog.Duration("duration", s.EndTime().Sub(s.StartTime())),
		slog.String("status", s.Status().Code.String()),
	}
	for _, kv := range s.Attributes() {
		attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
	}
	p.logger.Debug("span ended", attrs...)
}

func (p *logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *logSpanProcessor) ForceFlush(context.Context) error { return nil }
