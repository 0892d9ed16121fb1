package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/janus-koncepts/wabot/engine/infra/monitoring/metrics"
	"github.com/janus-koncepts/wabot/pkg/logger"
	"github.com/janus-koncepts/wabot/pkg/version"
)

var versionInfo = version.Get

// buildAttributes labels wabot_build_info.
func buildAttributes() attribute.Set {
	info := versionInfo()
	return attribute.NewSet(
		attribute.String("version", info.Version),
		attribute.String("commit_hash", info.CommitHash),
		attribute.String("go_version", info.GoVersion),
	)
}

// RegisterSystemMetrics exposes build info and process uptime through a single
// observable callback. Unregister the returned registration on shutdown.
func RegisterSystemMetrics(ctx context.Context, meter metric.Meter) (metric.Registration, error) {
	build, err := meter.Int64ObservableGauge(
		metrics.MetricName("build_info"),
		metric.WithDescription("Build information, always 1"),
	)
	if err != nil {
		return nil, fmt.Errorf("build info gauge: %w", err)
	}
	uptime, err := meter.Float64ObservableGauge(
		metrics.MetricName("uptime_seconds"),
		metric.WithDescription("Seconds since the service started"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("uptime gauge: %w", err)
	}
	started := time.Now()
	attrs := buildAttributes()
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(build, 1, metric.WithAttributeSet(attrs))
		o.ObserveFloat64(uptime, time.Since(started).Seconds())
		return nil
	}, build, uptime)
	if err != nil {
		return nil, fmt.Errorf("register system metrics: %w", err)
	}
	logger.FromContext(ctx).Debug("System metrics registered", "build", attrs.Encoded(attribute.DefaultEncoder()))
	return reg, nil
}
