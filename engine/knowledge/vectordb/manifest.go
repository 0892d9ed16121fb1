package vectordb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/janus-koncepts/wabot/engine/knowledge"
)

const (
	ManifestFile    = "manifest.json"
	ManifestVersion = 1
)

// Manifest describes how a persisted index was built.
type Manifest struct {
	Version          int                   `json:"version"`
	Format           knowledge.IndexFormat `json:"format"`
	Dimension        int                   `json:"dimension"`
	Records          int                   `json:"records"`
	EmbedderProvider string                `json:"embedder_provider"`
	EmbedderModel    string                `json:"embedder_model"`
	ChunkSize        int                   `json:"chunk_size"`
	ChunkOverlap     int                   `json:"chunk_overlap"`
	DocumentPath     string                `json:"document_path"`
	CreatedAt        time.Time             `json:"created_at"`
}

// WriteManifest stores m inside dir.
func WriteManifest(dir string, m *Manifest) error {
	if m == nil {
		return errors.New("vectordb: manifest is required")
	}
	if m.Version == 0 {
		m.Version = ManifestVersion
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("vectordb: encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("vectordb: write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest stored inside dir.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s has no %s", ErrIndexNotFound, dir, ManifestFile)
	}
	if err != nil {
		return nil, fmt.Errorf("vectordb: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("vectordb: decode manifest %q: %w", path, err)
	}
	if m.Version > ManifestVersion {
		return nil, fmt.Errorf("vectordb: manifest version %d is newer than supported %d", m.Version, ManifestVersion)
	}
	return &m, nil
}
