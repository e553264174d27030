package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumByAttr(t *testing.T, met *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", met.Name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.Emit() == value {
				total += dp.Value
			}
		}
	}
	return total
}

func TestRecordEvaluation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEvaluation(ctx, StatusOK, 120*time.Millisecond)
	m.RecordEvaluation(ctx, StatusOK, 300*time.Millisecond)
	m.RecordEvaluation(ctx, StatusTimeout, 5*time.Second)

	rm := collect(t, reader)

	counter := findMetric(rm, "interview.evaluations")
	if counter == nil {
		t.Fatal("evaluations counter not found")
	}
	if got := sumByAttr(t, counter, "status", StatusOK); got != 2 {
		t.Errorf("ok evaluations = %d, want 2", got)
	}
	if got := sumByAttr(t, counter, "status", StatusTimeout); got != 1 {
		t.Errorf("timed out evaluations = %d, want 1", got)
	}

	hist := findMetric(rm, "interview.evaluation.duration")
	if hist == nil {
		t.Fatal("evaluation duration histogram not found")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("evaluation duration is not a histogram")
	}
	var count uint64
	for _, dp := range data.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("histogram count = %d, want 3", count)
	}
}

func TestSessionGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionOpened(ctx)
	m.SessionOpened(ctx)
	m.SessionClosed(ctx)

	rm := collect(t, reader)
	met := findMetric(rm, "interview.active_sessions")
	if met == nil {
		t.Fatal("active sessions not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("active sessions is not a sum")
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("active sessions = %+v, want a single point of 1", sum.DataPoints)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordEvaluation(ctx, StatusOK, time.Second)
	m.RecordPersistence(ctx, StatusError)
	m.RecordIntroRejected(ctx)
	m.SessionOpened(ctx)
	m.SessionClosed(ctx)
	m.RecordCompleted(ctx, true)
}

func TestCallStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, StatusOK},
		{errors.New("boom"), StatusError},
		{fmt.Errorf("evaluate: %w", context.DeadlineExceeded), StatusTimeout},
		{fmt.Errorf("evaluate: %w", context.Canceled), StatusCancelled},
	}

	for _, tt := range tests {
		if got := CallStatus(tt.err); got != tt.want {
			t.Errorf("CallStatus(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
