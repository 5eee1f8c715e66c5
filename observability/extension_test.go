package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/observability"
	"github.com/xraph/docsync/syncjob"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestJob() *syncjob.Job {
	return &syncjob.Job{
		ID:    id.NewSyncJobID(),
		Type:  "order-to-invoice",
		Queue: "default",
	}
}

// counterValues collects every counter as name → total.
func counterValues(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Attributes(t *testing.T) {
	e, reader := newTestExtension()
	if err := e.OnJobEnqueued(context.Background(), newTestJob()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sum := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	attrs := sum.DataPoints[0].Attributes

	if v, ok := attrs.Value(attribute.Key("sync_job_type")); !ok || v.AsString() != "order-to-invoice" {
		t.Errorf("sync_job_type attribute = %v", v)
	}
	if v, ok := attrs.Value(attribute.Key("queue")); !ok || v.AsString() != "default" {
		t.Errorf("queue attribute = %v", v)
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()
	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	j := newTestJob()

	reg.EmitJobEnqueued(ctx, j)
	reg.EmitJobStarted(ctx, j)
	reg.EmitJobFinished(ctx, j, 50*time.Millisecond)
	reg.EmitJobFailed(ctx, j, errors.New("fail"))
	reg.EmitJobRetrying(ctx, j, 1, time.Second)
	reg.EmitJobRelayed(ctx, j, nil)
	reg.EmitJobSkipped(ctx, j, nil)
	reg.EmitJobNoTarget(ctx, j)
	reg.EmitJobCanceled(ctx, j)

	got := counterValues(t, reader)
	for _, name := range []string{
		"docsync.job.enqueued",
		"docsync.job.finished",
		"docsync.job.failed",
		"docsync.job.retried",
		"docsync.job.relayed",
		"docsync.job.skipped",
		"docsync.job.no_target",
		"docsync.job.canceled",
	} {
		if got[name] != 1 {
			t.Errorf("%s: want 1, got %d", name, got[name])
		}
	}
}
