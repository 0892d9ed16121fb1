package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge-base.pdf")
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Arial", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.Cell(40, 10, text)
	}
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFileLoader_PDF(t *testing.T) {
	t.Run("Should load one document per page", func(t *testing.T) {
		path := writePDF(t, "Opening hours are 9am to 5pm", "Delivery takes three days")
		docs, err := New().Load(t.Context(), path)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Contains(t, docs[0].Text, "Opening hours")
		assert.Contains(t, docs[1].Text, "Delivery")
		assert.Equal(t, 1, docs[0].Metadata[MetaPage])
		assert.Equal(t, 2, docs[1].Metadata[MetaPage])
		assert.Equal(t, "knowledge-base.pdf#2", docs[1].ID)
		assert.Equal(t, path, docs[0].Metadata[MetaSource])
		assert.Contains(t, docs[0].Metadata[MetaContentType], "application/pdf")
	})
}

func TestFileLoader_Text(t *testing.T) {
	t.Run("Should load a plain text file as one document", func(t *testing.T) {
		path := writeFile(t, "kb.txt", []byte("Janus Koncepts builds chatbots.\r\nContact us any day."))
		docs, err := New().Load(t.Context(), path)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Janus Koncepts builds chatbots.\nContact us any day.", docs[0].Text)
		assert.Equal(t, "kb.txt", docs[0].Metadata[MetaFilename])
	})

	t.Run("Should reject files without text", func(t *testing.T) {
		path := writeFile(t, "blank.txt", []byte("   \n\n  "))
		_, err := New().Load(t.Context(), path)
		assert.ErrorIs(t, err, ErrNoText)
	})

	t.Run("Should enforce the size limit", func(t *testing.T) {
		path := writeFile(t, "big.txt", []byte("0123456789 0123456789"))
		l := &FileLoader{maxTextBytes: 8}
		_, err := l.Load(t.Context(), path)
		assert.ErrorContains(t, err, "exceeds maximum size")
	})
}

func TestFileLoader_Errors(t *testing.T) {
	t.Run("Should report a missing document", func(t *testing.T) {
		_, err := New().Load(t.Context(), filepath.Join(t.TempDir(), "missing.pdf"))
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("Should reject binary formats", func(t *testing.T) {
		png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
		path := writeFile(t, "logo.png", png)
		_, err := New().Load(t.Context(), path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("Should reject directories", func(t *testing.T) {
		_, err := New().Load(t.Context(), t.TempDir())
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestDecodeText(t *testing.T) {
	t.Run("Should transcode declared latin-1 content", func(t *testing.T) {
		text, err := decodeText([]byte{'c', 'a', 'f', 0xe9}, "text/plain; charset=iso-8859-1")
		require.NoError(t, err)
		assert.Equal(t, "café", text)
	})
}
