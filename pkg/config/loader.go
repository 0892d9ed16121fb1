package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks generic overrides such as WABOT_KNOWLEDGE_TOP_K.
const EnvPrefix = "WABOT_"

var reservedPaths = []string{"/", "/webhook", "/healthz"}

type loader struct {
	validate *validator.Validate

	mu      sync.RWMutex
	origins map[string]SourceType
}

// NewService returns a Service that layers defaults, files, the environment and
// flags, in that order, onto a fresh koanf tree on every Load.
func NewService() Service {
	return &loader{
		validate: validator.New(),
		origins:  make(map[string]SourceType),
	}
}

func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	k := koanf.New(".")
	origins := make(map[string]SourceType)
	apply := func(src SourceType, load func() error) error {
		before := k.All()
		if err := load(); err != nil {
			return err
		}
		for key, value := range k.All() {
			if prev, ok := before[key]; !ok || !reflect.DeepEqual(prev, value) {
				origins[key] = src
			}
		}
		return nil
	}

	if err := apply(SourceDefault, func() error {
		if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
			return fmt.Errorf("failed to load defaults: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	var files, flags []Source
	for _, src := range sources {
		switch {
		case src == nil || src.Type() == SourceEnv:
		case src.Type() == SourceCLI:
			flags = append(flags, src)
		default:
			files = append(files, src)
		}
	}
	for _, src := range files {
		if err := apply(src.Type(), func() error { return mergeSource(k, src) }); err != nil {
			return nil, err
		}
	}
	if err := apply(SourceEnv, func() error { return loadEnv(k) }); err != nil {
		return nil, err
	}
	// Flags go last so they win over the environment.
	for _, src := range flags {
		if err := apply(src.Type(), func() error { return mergeSource(k, src) }); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	l.origins = origins
	l.mu.Unlock()
	return l.decode(k)
}

func loadEnv(k *koanf.Koanf) error {
	bound := EnvToPath()
	err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			if path, ok := bound[key]; ok {
				return path, value
			}
			return transformEnvKey(key), value
		},
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func mergeSource(k *koanf.Koanf, src Source) error {
	data, err := src.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", src.Type(), err)
	}
	for key, value := range flatten("", data) {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("failed to set %s from source %s: %w", key, src.Type(), err)
		}
	}
	return nil
}

// transformEnvKey turns WABOT_KNOWLEDGE_TOP_K into knowledge.top_k.
// Unprefixed variables map to "" and are dropped by koanf.
func transformEnvKey(name string) string {
	rest, ok := strings.CutPrefix(name, EnvPrefix)
	if !ok {
		return ""
	}
	parts := strings.FieldsFunc(strings.ToLower(rest), func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	section, field := parts[0], strings.Join(parts[1:], "_")
	if field == "" {
		return section
	}
	return section + "." + field
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = value
	}
	return out
}

func decodeSensitive(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != sensitiveType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	}
	return data, nil
}

func (l *loader) decode(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				decodeSensitive,
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate applies struct tag rules, then rules spanning several fields.
func (l *loader) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}
	if err := l.validate.Struct(cfg); err != nil {
		return err
	}
	if k := cfg.Knowledge; k.ChunkOverlap >= k.ChunkSize {
		return fmt.Errorf("knowledge chunk_overlap %d must be smaller than chunk_size %d", k.ChunkOverlap, k.ChunkSize)
	}
	if cfg.Monitoring.Enabled && slices.Contains(reservedPaths, cfg.Monitoring.Path) {
		return fmt.Errorf("monitoring path %q collides with a service route", cfg.Monitoring.Path)
	}
	return nil
}

// GetSource reports which layer last changed key in the most recent Load.
func (l *loader) GetSource(key string) SourceType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if src, ok := l.origins[key]; ok {
		return src
	}
	return SourceDefault
}
