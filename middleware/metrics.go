package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/docsync/syncjob"
)

const meterName = "github.com/xraph/docsync"

// Metrics records attempt metrics on the global MeterProvider.
//
//   - docsync.job.duration: seconds spent in the controller
//   - docsync.job.executions: attempt count
//   - docsync.job.first_attempt_failures: non-benign outcomes on attempt 1
//
// Every series carries sync_job_type, queue and outcome (see Outcome).
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter is Metrics on an explicit meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instrument constructors hand back usable noop instruments on error.
	duration, _ := meter.Float64Histogram("docsync.job.duration",
		metric.WithDescription("Time spent running the sync controller"),
		metric.WithUnit("s"))
	executions, _ := meter.Int64Counter("docsync.job.executions",
		metric.WithDescription("Sync controller attempts"),
		metric.WithUnit("{attempt}"))
	firstFail, _ := meter.Int64Counter("docsync.job.first_attempt_failures",
		metric.WithDescription("Sync jobs whose first attempt did not succeed"),
		metric.WithUnit("{job}"))

	return func(ctx context.Context, j *syncjob.Job, next Handler) error {
		began := time.Now()
		err := next(ctx)
		took := time.Since(began)

		outcome := Outcome(err)
		set := metric.WithAttributeSet(attribute.NewSet(
			attribute.String("sync_job_type", j.Type),
			attribute.String("queue", j.Queue),
			attribute.String("outcome", outcome),
		))
		duration.Record(ctx, took.Seconds(), set)
		executions.Add(ctx, 1, set)
		if j.Attempts <= 1 && !benign(outcome) {
			firstFail.Add(ctx, 1, set)
		}
		return err
	}
}
