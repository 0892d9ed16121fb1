package knowledge

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "wabot.knowledge"

var (
	metricsOnce        sync.Once
	metricsMu          sync.Mutex
	metricsInitErr     error
	ingestDurationHist metric.Float64Histogram
	chunkCounter       metric.Int64Counter
	queryLatencyHist   metric.Float64Histogram
	answerCounter      metric.Int64Counter
)

func RecordIngestDuration(ctx context.Context, source string, d time.Duration) {
	if err := ensureMetrics(); err != nil || ingestDurationHist == nil {
		return
	}
	ingestDurationHist.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("source", source)))
}

func RecordIngestChunks(ctx context.Context, chunks int) {
	if chunks <= 0 {
		return
	}
	if err := ensureMetrics(); err != nil || chunkCounter == nil {
		return
	}
	chunkCounter.Add(ctx, int64(chunks))
}

func RecordQueryLatency(ctx context.Context, d time.Duration) {
	if err := ensureMetrics(); err != nil || queryLatencyHist == nil {
		return
	}
	queryLatencyHist.Record(ctx, d.Seconds())
}

// RecordAnswer counts answers by outcome: answered, not_ready, failed.
func RecordAnswer(ctx context.Context, outcome string) {
	if err := ensureMetrics(); err != nil || answerCounter == nil {
		return
	}
	answerCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func ResetMetricsForTesting() {
	metricsMu.Lock()
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	ingestDurationHist = nil
	chunkCounter = nil
	queryLatencyHist = nil
	answerCounter = nil
	metricsMu.Unlock()
}

func ensureMetrics() error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metricsOnce.Do(func() {
		metricsInitErr = initMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metricsInitErr
}

func initMetrics(meter metric.Meter) error {
	var err error
	ingestDurationHist, err = meter.Float64Histogram(
		"wabot_knowledge_ingest_duration_seconds",
		metric.WithDescription("Latency of knowledge index load or build"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return err
	}
	chunkCounter, err = meter.Int64Counter(
		"wabot_knowledge_chunks_total",
		metric.WithDescription("Number of chunks embedded into the knowledge index"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	queryLatencyHist, err = meter.Float64Histogram(
		"wabot_knowledge_query_latency_seconds",
		metric.WithDescription("Latency of knowledge retrieval queries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5),
	)
	if err != nil {
		return err
	}
	answerCounter, err = meter.Int64Counter(
		"wabot_knowledge_answers_total",
		metric.WithDescription("Answers produced by outcome"),
		metric.WithUnit("1"),
	)
	return err
}
