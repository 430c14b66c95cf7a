// Package tracing installs the process-wide otel tracer provider. Finished
// spans are written to the zap logger instead of an external collector.
package tracing

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/xxxsen/papersearch/internal/config"
)

// Init sets the global tracer provider when tracing is enabled. The returned
// func flushes and stops it.
func Init(cfg config.TracingConfig) func(context.Context) error {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}
	tp := NewProvider(logutil.GetLogger(context.Background()), cfg.SampleRatio)
	otel.SetTracerProvider(tp)
	logutil.GetLogger(context.Background()).Info("tracing enabled", zap.Float64("sample_ratio", cfg.SampleRatio))
	return tp.Shutdown
}

func NewProvider(logger *zap.Logger, sampleRatio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithSpanProcessor(&logProcessor{logger: logger}),
	)
}

type logProcessor struct {
	logger *zap.Logger
}

func (p *logProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {}

func (p *logProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	attrs := s.Attributes()
	fields := make([]zap.Field, 0, len(attrs)+5)
	fields = append(fields,
		zap.String("span", s.Name()),
		zap.String("trace_id", s.SpanContext().TraceID().String()),
		zap.String("span_id", s.SpanContext().SpanID().String()),
		zap.Duration("duration", s.EndTime().Sub(s.StartTime()).Round(time.Microsecond)),
	)
	if s.Parent().IsValid() {
		fields = append(fields, zap.String("parent_id", s.Parent().SpanID().String()))
	}
	for _, kv := range attrs {
		fields = append(fields, zap.String("attr."+string(kv.Key), kv.Value.Emit()))
	}
	if st := s.Status(); st.Code == codes.Error {
		p.logger.Warn("span failed", append(fields, zap.String("status", st.Description))...)
		return
	}
	p.logger.Debug("span finished", fields...)
}

func (p *logProcessor) Shutdown(ctx context.Context) error {
	return nil
}

func (p *logProcessor) ForceFlush(ctx context.Context) error {
	return nil
}
