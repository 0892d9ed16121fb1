package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/janus-koncepts/wabot/engine/knowledge/chunk"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

// MaxTextFileSizeBytes caps plain text sources.
const MaxTextFileSizeBytes = 32 << 20

const (
	MetaSource      = "source"
	MetaPage        = "page"
	MetaFilename    = "filename"
	MetaContentType = "content_type"
)

var (
	ErrDocumentNotFound  = errors.New("loader: document not found")
	ErrUnsupportedFormat = errors.New("loader: unsupported document format")
	ErrNoText            = errors.New("loader: document contains no extractable text")
)

// FileLoader reads a PDF (one Document per page) or a plain text file.
type FileLoader struct {
	maxTextBytes int64
}

func New() *FileLoader {
	return &FileLoader{maxTextBytes: MaxTextFileSizeBytes}
}

// Load reads the document at path.
func (l *FileLoader) Load(ctx context.Context, path string) ([]chunk.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return nil, fmt.Errorf("loader: stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, path)
	}
	contentType := detectContentType(path)
	log := logger.FromContext(ctx).With("path", path, "content_type", contentType)
	var docs []chunk.Document
	switch {
	case isPDF(contentType):
		docs, err = loadPDF(ctx, path)
	case isText(contentType):
		docs, err = l.loadText(path, contentType)
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, path, contentType)
	}
	if err != nil {
		return nil, err
	}
	filename := filepath.Base(path)
	for i := range docs {
		docs[i].Metadata[MetaSource] = path
		docs[i].Metadata[MetaFilename] = filename
		docs[i].Metadata[MetaContentType] = contentType
	}
	if totalRunes(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, path)
	}
	log.Debug("Document loaded", "documents", len(docs))
	return docs, nil
}

func detectContentType(path string) string {
	if detected, err := mimetype.DetectFile(path); err == nil && detected != nil {
		return detected.String()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md":
		return "text/plain"
	}
	return "application/octet-stream"
}

func isPDF(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "application/pdf")
}

func isText(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "text/")
}

func totalRunes(docs []chunk.Document) int {
	total := 0
	for i := range docs {
		total += len(strings.TrimSpace(docs[i].Text))
	}
	return total
}
