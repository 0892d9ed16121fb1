package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/janus-koncepts/wabot/engine/core"
	"github.com/janus-koncepts/wabot/engine/knowledge"
	"github.com/janus-koncepts/wabot/engine/knowledge/chunk"
	"github.com/janus-koncepts/wabot/engine/knowledge/vectordb"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

// Source tells whether an index was loaded from disk or built from the document.
type Source string

const (
	SourceLoaded Source = "loaded"
	SourceBuilt  Source = "built"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 500 * time.Millisecond
	defaultLockTimeout   = 10 * time.Minute
	lockPollInterval     = 200 * time.Millisecond
)

// DocumentLoader reads the source document into page-level documents.
type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]chunk.Document, error)
}

// Embedder is the embedding backend used to vectorize chunks.
type Embedder interface {
	embeddings.Embedder
	Provider() core.ProviderName
	Model() string
	BatchSize() int
}

// Result describes a ready index. Store is opened read-only and owned by the caller.
type Result struct {
	Source    Source
	Dir       string
	Documents int
	Chunks    int
	Records   int
	Duration  time.Duration
	Manifest  *vectordb.Manifest
	Store     vectordb.Store
}

type Option func(*Indexer)

// WithRetry sets the attempts per embedding batch and the base of the exponential backoff.
func WithRetry(attempts int, base time.Duration) Option {
	return func(ix *Indexer) {
		ix.retryAttempts = attempts
		ix.retryBase = base
	}
}

// WithLockTimeout bounds how long a build waits for another builder of the same directory.
func WithLockTimeout(d time.Duration) Option {
	return func(ix *Indexer) {
		ix.lockTimeout = d
	}
}

// WithClock overrides time.Now for manifests.
func WithClock(now func() time.Time) Option {
	return func(ix *Indexer) {
		ix.now = now
	}
}

type Indexer struct {
	settings      knowledge.Settings
	loader        DocumentLoader
	embedder      Embedder
	processor     *chunk.Processor
	retryAttempts int
	retryBase     time.Duration
	lockTimeout   time.Duration
	now           func() time.Time
}

func New(settings knowledge.Settings, loader DocumentLoader, emb Embedder, opts ...Option) (*Indexer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, errors.New("indexer: document loader is required")
	}
	if emb == nil {
		return nil, errors.New("indexer: embedder is required")
	}
	processor, err := chunk.NewProcessor(chunk.Settings{Size: settings.ChunkSize, Overlap: settings.ChunkOverlap})
	if err != nil {
		return nil, err
	}
	ix := &Indexer{
		settings:      settings,
		loader:        loader,
		embedder:      emb,
		processor:     processor,
		retryAttempts: defaultRetryAttempts,
		retryBase:     defaultRetryBase,
		lockTimeout:   defaultLockTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.retryBase <= 0 {
		ix.retryBase = defaultRetryBase
	}
	if ix.retryAttempts < 0 {
		ix.retryAttempts = 0
	}
	return ix, nil
}

// LoadOrBuild opens the persisted index when its directory exists, without
// reading the document. Otherwise it builds and persists a new index.
func (ix *Indexer) LoadOrBuild(ctx context.Context) (*Result, error) {
	exists, err := vectordb.Exists(ix.settings.IndexDir)
	if err != nil {
		return nil, err
	}
	if exists {
		return ix.load(ctx)
	}
	unlock, err := ix.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	// Another process may have finished a build while we waited for the lock.
	exists, err = vectordb.Exists(ix.settings.IndexDir)
	if err != nil {
		return nil, err
	}
	if exists {
		return ix.load(ctx)
	}
	return ix.build(ctx)
}

// Rebuild always reads the document and atomically replaces the index directory.
func (ix *Indexer) Rebuild(ctx context.Context) (*Result, error) {
	unlock, err := ix.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return ix.build(ctx)
}

func (ix *Indexer) load(ctx context.Context) (*Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	store, manifest, err := vectordb.Open(ctx, ix.settings.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("indexer: load %q: %w", ix.settings.IndexDir, err)
	}
	ix.warnOnMismatch(log, manifest)
	duration := time.Since(start)
	knowledge.RecordIngestDuration(ctx, string(SourceLoaded), duration)
	log.Info(
		"Knowledge index loaded",
		"dir", ix.settings.IndexDir,
		"format", manifest.Format,
		"records", store.Count(),
		"duration", duration,
	)
	return &Result{
		Source:   SourceLoaded,
		Dir:      ix.settings.IndexDir,
		Records:  store.Count(),
		Duration: duration,
		Manifest: manifest,
		Store:    store,
	}, nil
}

func (ix *Indexer) warnOnMismatch(log logger.Logger, m *vectordb.Manifest) {
	var fields []any
	if m.EmbedderModel != "" && m.EmbedderModel != ix.embedder.Model() {
		fields = append(fields, "index_embedder_model", m.EmbedderModel, "embedder_model", ix.embedder.Model())
	}
	if m.EmbedderProvider != "" && m.EmbedderProvider != string(ix.embedder.Provider()) {
		fields = append(fields, "index_embedder_provider", m.EmbedderProvider, "embedder_provider", ix.embedder.Provider())
	}
	if m.ChunkSize != 0 && (m.ChunkSize != ix.settings.ChunkSize || m.ChunkOverlap != ix.settings.ChunkOverlap) {
		fields = append(fields, "index_chunk_size", m.ChunkSize, "index_chunk_overlap", m.ChunkOverlap)
	}
	if len(fields) == 0 {
		return
	}
	fields = append(fields, "dir", ix.settings.IndexDir)
	log.Warn("Knowledge index was built with different settings; delete it or run `wabot index` to rebuild", fields...)
}

func (ix *Indexer) build(ctx context.Context) (*Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	docs, err := ix.loader.Load(ctx, ix.settings.DocumentPath)
	if err != nil {
		return nil, fmt.Errorf("indexer: load document: %w", err)
	}
	chunks, err := ix.processor.Process(docs)
	if err != nil {
		return nil, fmt.Errorf("indexer: split document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("indexer: %q produced no chunks", ix.settings.DocumentPath)
	}
	tmpDir, err := ix.stagingDir()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()
	manifest, err := ix.writeIndex(ctx, tmpDir, chunks)
	if err != nil {
		return nil, err
	}
	if err := commitDir(tmpDir, ix.settings.IndexDir); err != nil {
		return nil, err
	}
	committed = true
	store, _, err := vectordb.Open(ctx, ix.settings.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("indexer: reopen %q: %w", ix.settings.IndexDir, err)
	}
	duration := time.Since(start)
	knowledge.RecordIngestDuration(ctx, string(SourceBuilt), duration)
	knowledge.RecordIngestChunks(ctx, len(chunks))
	log.Info(
		"Knowledge index built",
		"dir", ix.settings.IndexDir,
		"document", ix.settings.DocumentPath,
		"documents", len(docs),
		"chunks", len(chunks),
		"dimension", manifest.Dimension,
		"duration", duration,
	)
	return &Result{
		Source:    SourceBuilt,
		Dir:       ix.settings.IndexDir,
		Documents: len(docs),
		Chunks:    len(chunks),
		Records:   store.Count(),
		Duration:  duration,
		Manifest:  manifest,
		Store:     store,
	}, nil
}

func (ix *Indexer) writeIndex(ctx context.Context, dir string, chunks []chunk.Chunk) (*vectordb.Manifest, error) {
	store, err := vectordb.Create(ctx, &vectordb.Config{Dir: dir, Format: ix.settings.Format})
	if err != nil {
		return nil, err
	}
	if err := ix.persistChunks(ctx, store, chunks); err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	manifest := &vectordb.Manifest{
		Version:          vectordb.ManifestVersion,
		Format:           ix.settings.Format,
		Dimension:        store.Dimension(),
		Records:          store.Count(),
		EmbedderProvider: string(ix.embedder.Provider()),
		EmbedderModel:    ix.embedder.Model(),
		ChunkSize:        ix.settings.ChunkSize,
		ChunkOverlap:     ix.settings.ChunkOverlap,
		DocumentPath:     ix.settings.DocumentPath,
		CreatedAt:        ix.now().UTC(),
	}
	if err := store.Close(ctx); err != nil {
		return nil, fmt.Errorf("indexer: close store: %w", err)
	}
	if err := vectordb.WriteManifest(dir, manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (ix *Indexer) persistChunks(ctx context.Context, store vectordb.Store, chunks []chunk.Chunk) error {
	batchSize := ix.embedder.BatchSize()
	if batchSize <= 0 {
		batchSize = len(chunks)
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]
		vectors, err := ix.embedBatch(ctx, batch)
		if err != nil {
			return err
		}
		records := make([]vectordb.Record, len(batch))
		for i := range batch {
			records[i] = vectordb.Record{
				ID:        batch[i].ID,
				Text:      batch[i].Text,
				Embedding: vectors[i],
				Metadata:  batch[i].Metadata,
			}
		}
		if err := store.Upsert(ctx, records); err != nil {
			return fmt.Errorf("indexer: persist vectors: %w", err)
		}
	}
	return nil
}

func (ix *Indexer) embedBatch(ctx context.Context, batch []chunk.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}
	var vectors [][]float32
	backoff := retry.WithMaxRetries(uint64(ix.retryAttempts), retry.NewExponential(ix.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.FromContext(ctx).Warn("Embedding batch failed; retrying", "size", len(texts), "error", err)
			return retry.RetryableError(err)
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("indexer: received %d embeddings for %d chunks", len(vectors), len(texts))
	}
	return vectors, nil
}

func (ix *Indexer) stagingDir() (string, error) {
	parent := filepath.Dir(filepath.Clean(ix.settings.IndexDir))
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return "", fmt.Errorf("indexer: ensure parent %q: %w", parent, err)
	}
	base := filepath.Base(filepath.Clean(ix.settings.IndexDir))
	dir, err := os.MkdirTemp(parent, "."+base+".build-")
	if err != nil {
		return "", fmt.Errorf("indexer: create staging directory: %w", err)
	}
	return dir, nil
}

// commitDir moves a finished build into place, replacing any existing index.
func commitDir(staged, target string) error {
	exists, err := vectordb.Exists(target)
	if err != nil {
		return err
	}
	if !exists {
		if err := os.Rename(staged, target); err != nil {
			return fmt.Errorf("indexer: commit index: %w", err)
		}
		return nil
	}
	old := fmt.Sprintf("%s.old-%d", filepath.Clean(target), time.Now().UnixNano())
	if err := os.Rename(target, old); err != nil {
		return fmt.Errorf("indexer: move previous index aside: %w", err)
	}
	if err := os.Rename(staged, target); err != nil {
		_ = os.Rename(old, target)
		return fmt.Errorf("indexer: commit index: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("indexer: remove previous index: %w", err)
	}
	return nil
}

func (ix *Indexer) lock(ctx context.Context) (func(), error) {
	path := filepath.Clean(ix.settings.IndexDir) + ".lock"
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("indexer: ensure lock directory: %w", err)
	}
	fileLock := flock.New(path)
	lockCtx, cancel := context.WithTimeout(ctx, ix.lockTimeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, lockPollInterval)
	if err != nil {
		return nil, fmt.Errorf("indexer: acquire build lock %q: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("indexer: build lock %q is held by another process", path)
	}
	return func() {
		if err := fileLock.Unlock(); err != nil {
			logger.FromContext(ctx).Warn("Failed to release build lock", "path", path, "error", err)
		}
	}, nil
}
