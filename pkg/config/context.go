package config

import (
	"context"
	"sync"

	"github.com/janus-koncepts/wabot/pkg/logger"
)

type ContextKey string

const ConfigCtxKey ContextKey = "config"

var (
	defaultConfig     *Config
	defaultConfigOnce sync.Once
)

// ContextWithConfig stores the active configuration in the context.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ConfigCtxKey, cfg)
}

// FromContext returns the configuration attached to ctx. Without one it lazily
// loads defaults plus environment overrides.
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(ConfigCtxKey).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	defaultConfigOnce.Do(func() {
		cfg, err := NewService().Load(ctx)
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to load default configuration, using built-in defaults", "error", err)
			cfg = Default()
		}
		defaultConfig = cfg
	})
	return defaultConfig
}
