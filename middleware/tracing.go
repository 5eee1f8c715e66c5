package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/docsync/syncjob"
)

const tracerName = "github.com/xraph/docsync"

// Tracing opens one span per controller attempt on the global
// TracerProvider. Skipped and not-permitted outcomes end the span with
// an Ok status and a docsync.outcome attribute rather than an error.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing on an explicit tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *syncjob.Job, next Handler) error {
		attrs := []attribute.KeyValue{
			attribute.String("docsync.job.id", j.ID.String()),
			attribute.String("docsync.job.type", j.Type),
			attribute.String("docsync.queue", j.Queue),
			attribute.String("docsync.source.type", j.SourceDocumentType),
			attribute.String("docsync.source.name", j.SourceDocumentName),
			attribute.Int("docsync.attempt", j.Attempts),
			attribute.Bool("docsync.dry_run", j.DryRun),
		}
		if !j.ParentJob.IsNil() {
			attrs = append(attrs, attribute.String("docsync.parent_job", j.ParentJob.String()))
		}
		ctx, span := tracer.Start(ctx, "docsync.sync "+j.Type,
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()

		err := next(ctx)
		outcome := Outcome(err)
		span.SetAttributes(attribute.String("docsync.outcome", outcome))
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
		case benign(outcome):
			span.AddEvent(err.Error())
			span.SetStatus(codes.Ok, "")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}
