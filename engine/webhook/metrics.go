package webhook

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	monitoringmetrics "github.com/janus-koncepts/wabot/engine/infra/monitoring/metrics"
)

const (
	OutcomeAnswered   = "answered"
	OutcomeNotReady   = "not_ready"
	OutcomeErrorReply = "error_reply"
	OutcomeIgnored    = "ignored"
)

const (
	reasonReadBody    = "read_body"
	reasonSignature   = "signature"
	reasonParse       = "parse"
	reasonUnsupported = "unsupported_message"
	reasonAnswer      = "answer"
	reasonSend        = "send"
	reasonPanic       = "panic"
)

// Metrics provides instrumentation for webhook processing. A nil *Metrics is a no-op.
type Metrics struct {
	receivedTotal       metric.Int64Counter
	verifiedTotal       metric.Int64Counter
	outcomeTotal        metric.Int64Counter
	failedTotal         metric.Int64Counter
	processingHistogram metric.Float64Histogram
	payloadHistogram    metric.Int64Histogram
}

// NewMetrics initializes webhook metrics using the provided meter
func NewMetrics(_ context.Context, meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	if meter == nil {
		return m, nil
	}
	counterDefs := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&m.receivedTotal, "received_total", "Total webhook deliveries received"},
		{&m.verifiedTotal, "verified_total", "Total webhook deliveries whose signature verified"},
		{&m.outcomeTotal, "messages_total", "Processed webhook deliveries by outcome"},
		{&m.failedTotal, "failed_total", "Webhook processing failures by reason"},
	}
	for _, def := range counterDefs {
		counter, err := meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("webhook", def.name),
			metric.WithDescription(def.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create webhook %s counter: %w", def.name, err)
		}
		*def.target = counter
	}
	var err error
	m.processingHistogram, err = meter.Float64Histogram(
		monitoringmetrics.MetricNameWithSubsystem("webhook", "processing_duration_seconds"),
		metric.WithDescription("Time from delivery to reply attempt"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(monitoringmetrics.AnswerDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook processing histogram: %w", err)
	}
	m.payloadHistogram, err = meter.Int64Histogram(
		monitoringmetrics.MetricNameWithSubsystem("webhook", "payload_size_bytes"),
		metric.WithDescription("Size distribution of webhook payloads"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 1000, 10000, 100000, 1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook payload histogram: %w", err)
	}
	return m, nil
}

func (m *Metrics) OnReceived(ctx context.Context, payloadBytes int) {
	if m == nil {
		return
	}
	if m.receivedTotal != nil {
		m.receivedTotal.Add(ctx, 1)
	}
	if m.payloadHistogram != nil && payloadBytes >= 0 {
		m.payloadHistogram.Record(ctx, int64(payloadBytes))
	}
}

func (m *Metrics) OnVerified(ctx context.Context) {
	if m != nil && m.verifiedTotal != nil {
		m.verifiedTotal.Add(ctx, 1)
	}
}

func (m *Metrics) OnFailed(ctx context.Context, reason string) {
	if m != nil && m.failedTotal != nil {
		m.failedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// ObserveOutcome records the handling duration and outcome of one delivery.
func (m *Metrics) ObserveOutcome(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.outcomeTotal != nil {
		m.outcomeTotal.Add(ctx, 1, attrs)
	}
	if m.processingHistogram != nil {
		m.processingHistogram.Record(ctx, d.Seconds(), attrs)
	}
}
