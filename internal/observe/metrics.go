// Package observe holds the OpenTelemetry instruments of interview-coach and
// the HTTP middleware that records request metrics and access logs.
//
// Metrics are exported through the Prometheus bridge set up by InitProvider.
// Tests should build their own instance with NewMetrics and a manual reader.
package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/spigell/interview-coach"

// Status values attached to collaborator calls.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)

// Metrics holds every instrument. All methods are safe on a nil receiver so
// components can run without metrics.
type Metrics struct {
	// EvaluationDuration tracks evaluator latency. Attributes: status.
	EvaluationDuration metric.Float64Histogram
	// Evaluations counts evaluator calls. Attributes: status.
	Evaluations metric.Int64Counter
	// Persistences counts transcript saves. Attributes: status.
	Persistences metric.Int64Counter
	// IntroRejections counts introductions that could not be parsed.
	IntroRejections metric.Int64Counter
	// ActiveSessions tracks interviews currently open.
	ActiveSessions metric.Int64UpDownCounter
	// CompletedSessions counts finished interviews. Attributes: saved.
	CompletedSessions metric.Int64Counter
	// HTTPRequestDuration tracks request latency. Attributes: method, path, status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EvaluationDuration, err = m.Float64Histogram("interview.evaluation.duration",
		metric.WithDescription("Latency of answer evaluation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Evaluations, err = m.Int64Counter("interview.evaluations",
		metric.WithDescription("Total answer evaluations by status."),
	); err != nil {
		return nil, err
	}
	if met.Persistences, err = m.Int64Counter("interview.persistences",
		metric.WithDescription("Total transcript saves by status."),
	); err != nil {
		return nil, err
	}
	if met.IntroRejections, err = m.Int64Counter("interview.intro.rejections",
		metric.WithDescription("Total introductions that could not be parsed."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("interview.active_sessions",
		metric.WithDescription("Number of open interview sessions."),
	); err != nil {
		return nil, err
	}
	if met.CompletedSessions, err = m.Int64Counter("interview.completed_sessions",
		metric.WithDescription("Total completed interviews by save outcome."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("interview.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

func (m *Metrics) RecordEvaluation(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Evaluations.Add(ctx, 1, attrs)
	m.EvaluationDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordPersistence(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Persistences.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordIntroRejected(ctx context.Context) {
	if m == nil {
		return
	}
	m.IntroRejections.Add(ctx, 1)
}

func (m *Metrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

func (m *Metrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}

func (m *Metrics) RecordCompleted(ctx context.Context, saved bool) {
	if m == nil {
		return
	}
	m.CompletedSessions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("saved", saved)))
}

// CallStatus maps a collaborator error to a status attribute value.
func CallStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusError
	}
}
