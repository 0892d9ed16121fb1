package middleware

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/janus-koncepts/wabot/engine/infra/monitoring/metrics"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

// unmatchedRoute labels requests gin could not route, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

type httpInstruments struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	if meter == nil {
		return nil, errors.New("meter is nil")
	}
	requests, err := meter.Int64Counter(
		metrics.MetricName("http_requests_total"),
		metric.WithDescription("HTTP requests served, by route and status"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		metrics.MetricName("http_request_duration_seconds"),
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.HTTPDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter(
		metrics.MetricName("http_requests_in_flight"),
		metric.WithDescription("HTTP requests currently being served"),
	)
	if err != nil {
		return nil, err
	}
	return &httpInstruments{requests: requests, latency: latency, inFlight: inFlight}, nil
}

func (h *httpInstruments) observe(ctx context.Context, c *gin.Context, elapsed time.Duration) {
	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}
	attrs := metric.WithAttributes(
		attribute.String("method", c.Request.Method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(c.Writer.Status())),
	)
	h.requests.Add(ctx, 1, attrs)
	h.latency.Record(ctx, elapsed.Seconds(), attrs)
}

// HTTPMetrics returns middleware that counts and times every request by route
// template. Without usable instruments it only calls the next handler.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	inst, err := newHTTPInstruments(meter)
	if err != nil {
		logger.Warn("HTTP metrics disabled", "error", err)
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		inst.inFlight.Add(ctx, 1)
		defer inst.inFlight.Add(ctx, -1)
		c.Next()
		inst.observe(ctx, c, time.Since(start))
	}
}
