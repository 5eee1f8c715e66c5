package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/middleware"
	"github.com/xraph/docsync/syncjob"
)

func newTestJob() *syncjob.Job {
	return &syncjob.Job{
		ID:                 id.NewSyncJobID(),
		Type:               "order-to-invoice",
		Queue:              "billing",
		SourceDocumentType: "Order",
		SourceDocumentName: "O-1",
		Attempts:           1,
	}
}

var outcomeCases = []struct {
	name    string
	err     error
	outcome string
	failed  bool
}{
	{"success", nil, middleware.OutcomeOK, false},
	{"skip", fmt.Errorf("%w: target Invoice/I-1 has no changes", docsync.ErrSkip), middleware.OutcomeSkipped, false},
	{"not permitted", fmt.Errorf("%w: delete is disabled", docsync.ErrOperationNotPermitted), middleware.OutcomeNotPermitted, false},
	{"no target", fmt.Errorf("%w: customer missing", docsync.ErrResolution), middleware.OutcomeNoTarget, true},
	{"timeout", docsync.ErrTimeout, middleware.OutcomeTimeout, true},
	{"deadline", context.DeadlineExceeded, middleware.OutcomeTimeout, true},
	{"canceled", context.Canceled, middleware.OutcomeCanceled, true},
	{"other", errors.New("invoice store unavailable"), middleware.OutcomeError, true},
}

func TestOutcome(t *testing.T) {
	for _, tc := range outcomeCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.outcome, middleware.Outcome(tc.err))
		})
	}
}

// sumByOutcome folds an Int64 sum into outcome -> value.
func sumByOutcome(t *testing.T, reader *sdkmetric.ManualReader, name string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is %T", name, m.Data)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("outcome")
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetricsCountsEveryOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := middleware.MetricsWithMeter(mp.Meter("docsync-test"))

	want := map[string]int64{}
	wantFirst := map[string]int64{}
	for _, tc := range outcomeCases {
		err := m(context.Background(), newTestJob(), func(context.Context) error { return tc.err })
		assert.ErrorIs(t, err, tc.err)
		want[tc.outcome]++
		if tc.failed {
			wantFirst[tc.outcome]++
		}
	}

	assert.Equal(t, want, sumByOutcome(t, reader, "docsync.job.executions"))
	assert.Equal(t, wantFirst, sumByOutcome(t, reader, "docsync.job.first_attempt_failures"))
}

func TestMetricsRetriedAttemptIsNotFirstFailure(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := middleware.MetricsWithMeter(mp.Meter("docsync-test"))

	j := newTestJob()
	j.Attempts = 3
	_ = m(context.Background(), j, func(context.Context) error { return errors.New("still down") })

	assert.Empty(t, sumByOutcome(t, reader, "docsync.job.first_attempt_failures"))
	assert.Equal(t, map[string]int64{middleware.OutcomeError: 1}, sumByOutcome(t, reader, "docsync.job.executions"))
}

func TestMetricsDurationCarriesJobLabels(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := middleware.MetricsWithMeter(mp.Meter("docsync-test"))

	require.NoError(t, m(context.Background(), newTestJob(), func(context.Context) error { return nil }))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var hist metricdata.Histogram[float64]
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name == "docsync.job.duration" {
			hist = m.Data.(metricdata.Histogram[float64])
		}
	}
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)
	for key, want := range map[attribute.Key]string{
		"sync_job_type": "order-to-invoice",
		"queue":         "billing",
		"outcome":       middleware.OutcomeOK,
	} {
		got, ok := dp.Attributes.Value(key)
		if assert.True(t, ok, "missing %s", key) {
			assert.Equal(t, want, got.AsString(), key)
		}
	}
}

func TestTracingSpanPerAttempt(t *testing.T) {
	for _, tc := range outcomeCases {
		t.Run(tc.name, func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
			m := middleware.TracingWithTracer(tp.Tracer("docsync-test"))

			j := newTestJob()
			var inner trace.SpanContext
			err := m(context.Background(), j, func(ctx context.Context) error {
				inner = trace.SpanFromContext(ctx).SpanContext()
				return tc.err
			})
			assert.ErrorIs(t, err, tc.err)

			spans := sr.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, "docsync.sync order-to-invoice", span.Name())
			assert.Equal(t, span.SpanContext().SpanID(), inner.SpanID())

			attrs := attribute.NewSet(span.Attributes()...)
			got, _ := attrs.Value("docsync.outcome")
			assert.Equal(t, tc.outcome, got.AsString())
			got, _ = attrs.Value("docsync.job.id")
			assert.Equal(t, j.ID.String(), got.AsString())
			got, _ = attrs.Value("docsync.attempt")
			assert.Equal(t, int64(1), got.AsInt64())

			if tc.failed {
				assert.Equal(t, codes.Error, span.Status().Code)
				assert.Equal(t, tc.err.Error(), span.Status().Description)
			} else {
				assert.Equal(t, codes.Ok, span.Status().Code)
			}
		})
	}
}

func TestTracingRecordsParentJob(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m := middleware.TracingWithTracer(tp.Tracer("docsync-test"))

	j := newTestJob()
	j.ParentJob = id.NewSyncJobID()
	require.NoError(t, m(context.Background(), j, func(context.Context) error { return nil }))

	attrs := attribute.NewSet(sr.Ended()[0].Attributes()...)
	got, ok := attrs.Value("docsync.parent_job")
	require.True(t, ok)
	assert.Equal(t, j.ParentJob.String(), got.AsString())
}

func TestTelemetryWithoutProviders(t *testing.T) {
	calls := 0
	h := middleware.Chain(middleware.Tracing(), middleware.Metrics())
	err := h(context.Background(), newTestJob(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
