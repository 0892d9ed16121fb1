package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/janus-koncepts/wabot/engine/infra/monitoring/middleware"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

const meterName = "wabot"

// Service owns the meter provider and the Prometheus registry it exports to.
// A disabled Service hands out a no-op meter and pass-through middleware.
type Service struct {
	config  *Config
	meter   metric.Meter
	enabled *exporterState
	err     error
}

type exporterState struct {
	provider *sdkmetric.MeterProvider
	registry *prom.Registry
	system   metric.Registration
}

func disabled(cfg *Config, cause error) *Service {
	return &Service{
		config: cfg,
		meter:  noop.NewMeterProvider().Meter(meterName),
		err:    cause,
	}
}

// NewMonitoringService validates cfg and, when enabled, wires an OpenTelemetry
// meter provider to a private Prometheus registry with Go runtime collectors.
func NewMonitoringService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled")
		return disabled(cfg, nil), nil
	}
	state, err := newExporterState(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("Monitoring enabled", "path", cfg.Path)
	return &Service{
		config:  cfg,
		meter:   state.provider.Meter(meterName),
		enabled: state,
	}, nil
}

func newExporterState(ctx context.Context) (*exporterState, error) {
	registry := prom.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	system, err := RegisterSystemMetrics(ctx, provider.Meter(meterName))
	if err != nil {
		return nil, errors.Join(err, provider.Shutdown(ctx))
	}
	return &exporterState{provider: provider, registry: registry, system: system}, nil
}

// NewMonitoringServiceWithFallback logs setup failures and returns a disabled Service.
func NewMonitoringServiceWithFallback(ctx context.Context, cfg *Config) *Service {
	service, err := NewMonitoringService(ctx, cfg)
	if err == nil {
		return service
	}
	logger.FromContext(ctx).Error("Monitoring setup failed, metrics disabled", "error", err)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return disabled(cfg, err)
}

func (s *Service) Meter() metric.Meter {
	return s.meter
}

func (s *Service) Path() string {
	return s.config.Path
}

func (s *Service) IsInitialized() bool {
	return s.enabled != nil
}

// InitializationError is the setup failure behind a fallback Service, if any.
func (s *Service) InitializationError() error {
	return s.err
}

// SetAsGlobal makes the exporter's provider the process-wide one so the
// knowledge and webhook instruments report through it.
func (s *Service) SetAsGlobal() {
	if s.enabled != nil {
		otel.SetMeterProvider(s.enabled.provider)
	}
}

func (s *Service) GinMiddleware() gin.HandlerFunc {
	if s.enabled == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.HTTPMetrics(s.meter)
}

// ExporterHandler serves the registry in the Prometheus text format, or 503 when disabled.
func (s *Service) ExporterHandler() http.Handler {
	if s.enabled == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
			}
		})
	}
	return promhttp.HandlerFor(s.enabled.registry, promhttp.HandlerOpts{})
}

// Shutdown stops observing system metrics and flushes the provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.enabled == nil {
		return nil
	}
	state := s.enabled
	s.enabled = nil
	return errors.Join(state.system.Unregister(), state.provider.Shutdown(ctx))
}
