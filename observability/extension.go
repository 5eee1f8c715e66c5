package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/syncjob"
)

var (
	_ ext.Extension   = (*MetricsExtension)(nil)
	_ ext.JobEnqueued = (*MetricsExtension)(nil)
	_ ext.JobFinished = (*MetricsExtension)(nil)
	_ ext.JobFailed   = (*MetricsExtension)(nil)
	_ ext.JobRetrying = (*MetricsExtension)(nil)
	_ ext.JobRelayed  = (*MetricsExtension)(nil)
	_ ext.JobSkipped  = (*MetricsExtension)(nil)
	_ ext.JobNoTarget = (*MetricsExtension)(nil)
	_ ext.JobCanceled = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/docsync/observability"

// MetricsExtension counts sync job lifecycle events. Every data point
// carries the sync_job_type and queue attributes.
type MetricsExtension struct {
	JobEnqueued metric.Int64Counter
	JobFinished metric.Int64Counter
	JobFailed   metric.Int64Counter
	JobRetried  metric.Int64Counter
	JobRelayed  metric.Int64Counter
	JobSkipped  metric.Int64Counter
	JobNoTarget metric.Int64Counter
	JobCanceled metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension on the given
// meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// The OTel API returns a noop instrument alongside any error.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{job}"))
		return c
	}
	return &MetricsExtension{
		JobEnqueued: counter("docsync.job.enqueued", "Sync jobs enqueued"),
		JobFinished: counter("docsync.job.finished", "Sync jobs finished"),
		JobFailed:   counter("docsync.job.failed", "Sync jobs failed with no retry scheduled"),
		JobRetried:  counter("docsync.job.retried", "Sync job retries scheduled"),
		JobRelayed:  counter("docsync.job.relayed", "Sync jobs relayed to child jobs"),
		JobSkipped:  counter("docsync.job.skipped", "Sync jobs skipped"),
		JobNoTarget: counter("docsync.job.no_target", "Sync jobs with no resolvable target"),
		JobCanceled: counter("docsync.job.canceled", "Sync jobs canceled"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func jobAttrs(j *syncjob.Job) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("sync_job_type", j.Type),
		attribute.String("queue", j.Queue),
	)
}

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *syncjob.Job) error {
	m.JobEnqueued.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobFinished implements ext.JobFinished.
func (m *MetricsExtension) OnJobFinished(ctx context.Context, j *syncjob.Job, _ time.Duration) error {
	m.JobFinished.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *syncjob.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *syncjob.Job, _ int, _ time.Duration) error {
	m.JobRetried.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobRelayed implements ext.JobRelayed.
func (m *MetricsExtension) OnJobRelayed(ctx context.Context, j *syncjob.Job, _ []*syncjob.Job) error {
	m.JobRelayed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobSkipped implements ext.JobSkipped.
func (m *MetricsExtension) OnJobSkipped(ctx context.Context, j *syncjob.Job, _ error) error {
	m.JobSkipped.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobNoTarget implements ext.JobNoTarget.
func (m *MetricsExtension) OnJobNoTarget(ctx context.Context, j *syncjob.Job) error {
	m.JobNoTarget.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCanceled implements ext.JobCanceled.
func (m *MetricsExtension) OnJobCanceled(ctx context.Context, j *syncjob.Job) error {
	m.JobCanceled.Add(ctx, 1, jobAttrs(j))
	return nil
}
