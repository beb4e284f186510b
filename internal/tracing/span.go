package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/internal/workload"
)

// StartOpSpan starts a new span for one workload operation.
func StartOpSpan(ctx context.Context, tracer trace.Tracer, op string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("vigil.op", op),
	)
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// tracedOp emits one span per call, after any retries made by inner
// decorators.
type tracedOp struct {
	inner  workload.Op
	tracer trace.Tracer
}

// WrapOp wraps an Op so every call is recorded as a span.
func WrapOp(op workload.Op, tracer trace.Tracer) workload.Op {
	if tracer == nil {
		return op
	}
	return &tracedOp{
		inner:  op,
		tracer: tracer,
	}
}

func (t *tracedOp) Name() string { return t.inner.Name() }

func (t *tracedOp) Do(ctx context.Context, a *arena.Arena) error {
	ctx, span := StartOpSpan(ctx, t.tracer, t.inner.Name())
	err := t.inner.Do(ctx, a)
	EndSpan(span, err)
	return err
}
