package vectordb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/janus-koncepts/wabot/engine/knowledge"
)

const defaultTopK = knowledge.DefaultTopK

var errMissingDir = errors.New("vectordb: index directory is required")

// Exists reports whether dir is present. Presence alone decides load versus build.
func Exists(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("vectordb: stat %q: %w", dir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("vectordb: %q is not a directory", dir)
	}
	return true, nil
}

// Create makes dir and returns an empty writable store in the requested format.
func Create(ctx context.Context, cfg *Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("vectordb: ensure directory %q: %w", cfg.Dir, err)
	}
	writable := *cfg
	writable.ReadOnly = false
	return instantiateStore(ctx, &writable)
}

// Open loads a persisted index for retrieval.
func Open(ctx context.Context, dir string) (Store, *Manifest, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil, errMissingDir
	}
	exists, err := Exists(dir)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
	}
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}
	store, err := instantiateStore(ctx, &Config{
		Dir:       dir,
		Format:    manifest.Format,
		Dimension: manifest.Dimension,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, manifest, nil
}

func instantiateStore(_ context.Context, cfg *Config) (Store, error) {
	switch cfg.Format {
	case knowledge.FormatJSON, "":
		return newFileStore(cfg)
	case knowledge.FormatBolt:
		return newBoltStore(cfg)
	default:
		return nil, fmt.Errorf("vectordb: format %q is not supported", cfg.Format)
	}
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("vectordb: config is required")
	}
	cfg.Dir = strings.TrimSpace(cfg.Dir)
	if cfg.Dir == "" {
		return errMissingDir
	}
	if cfg.Dimension < 0 {
		return fmt.Errorf("vectordb: dimension must be non-negative, got %d", cfg.Dimension)
	}
	return nil
}
