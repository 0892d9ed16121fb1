package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/janus-koncepts/wabot/engine/knowledge/chunk"
)

func (l *FileLoader) loadText(path string, contentType string) ([]chunk.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %q: %w", path, err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, l.maxTextBytes+1))
	if err != nil {
		return nil, fmt.Errorf("loader: read %q: %w", path, err)
	}
	if int64(len(data)) > l.maxTextBytes {
		return nil, fmt.Errorf("loader: %q exceeds maximum size of %d bytes", path, l.maxTextBytes)
	}
	text, err := decodeText(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("loader: decode %q: %w", path, err)
	}
	return []chunk.Document{{
		ID:       filepath.Base(path),
		Text:     text,
		Metadata: map[string]any{},
	}}, nil
}

// decodeText converts data to UTF-8 using the declared or sniffed charset.
func decodeText(data []byte, contentType string) (string, error) {
	if utf8.Valid(data) {
		return normalizeNewlines(string(data)), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("transcode from %s: %w", name, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("transcoded result from %s is not valid utf-8", name)
	}
	return normalizeNewlines(string(decoded)), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
