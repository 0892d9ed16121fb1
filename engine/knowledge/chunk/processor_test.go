package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		fmt.Fprintf(&b, "word%04d ", i)
	}
	return strings.TrimSpace(b.String())
}

func TestNewProcessor(t *testing.T) {
	t.Run("Should reject invalid settings", func(t *testing.T) {
		_, err := NewProcessor(Settings{Size: 0})
		assert.Error(t, err)
		_, err = NewProcessor(Settings{Size: 100, Overlap: -1})
		assert.Error(t, err)
		_, err = NewProcessor(Settings{Size: 100, Overlap: 100})
		assert.ErrorContains(t, err, "smaller than size")
	})
}

func TestProcessor_Process(t *testing.T) {
	p, err := NewProcessor(Settings{Size: 500, Overlap: 50})
	require.NoError(t, err)

	t.Run("Should keep every chunk within the size limit", func(t *testing.T) {
		text := sampleText(600)
		chunks, err := p.Process([]Document{{ID: "doc", Text: text}})
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 500)
		}
		length := utf8.RuneCountInString(text)
		minChunks := (length + 499) / 500
		maxChunks := 2 * ((length + 449) / 450)
		assert.GreaterOrEqual(t, len(chunks), minChunks)
		assert.LessOrEqual(t, len(chunks), maxChunks)
	})

	t.Run("Should preserve source order across chunks", func(t *testing.T) {
		text := sampleText(600)
		chunks, err := p.Process([]Document{{ID: "doc", Text: text}})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(chunks[0].Text, "word0000"))
		assert.True(t, strings.HasSuffix(chunks[len(chunks)-1].Text, "word0599"))
		last := -1
		for _, c := range chunks {
			first := strings.Fields(c.Text)[0]
			var n int
			_, err := fmt.Sscanf(first, "word%04d", &n)
			require.NoError(t, err)
			assert.Greater(t, n, last)
			last = n
		}
	})

	t.Run("Should split text without separators", func(t *testing.T) {
		text := strings.Repeat("x", 1200)
		chunks, err := p.Process([]Document{{ID: "blob", Text: text}})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(chunks), 3)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 500)
		}
	})

	t.Run("Should attach chunk metadata and inherit page metadata", func(t *testing.T) {
		chunks, err := p.Process([]Document{
			{ID: "kb.pdf#1", Text: "Opening hours are 9am to 5pm.", Metadata: map[string]any{"page": 1}},
			{ID: "kb.pdf#2", Text: "   "},
			{ID: "kb.pdf#3", Text: "Pricing starts at $10.", Metadata: map[string]any{"page": 3}},
		})
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, 1, chunks[0].Metadata["page"])
		assert.Equal(t, 0, chunks[0].Metadata[MetaChunkIndex])
		assert.Equal(t, "kb.pdf#3", chunks[1].Metadata[MetaSourceID])
	})

	t.Run("Should produce deterministic identifiers", func(t *testing.T) {
		docs := []Document{{ID: "doc", Text: sampleText(200)}}
		first, err := p.Process(docs)
		require.NoError(t, err)
		second, err := p.Process(docs)
		require.NoError(t, err)
		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
	})

	t.Run("Should return nothing for no documents", func(t *testing.T) {
		chunks, err := p.Process(nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestHardSplit(t *testing.T) {
	t.Run("Should window oversized text with overlap", func(t *testing.T) {
		parts := hardSplit(strings.Repeat("a", 25), 10, 2)
		require.Len(t, parts, 3)
		assert.Len(t, parts[0], 10)
		assert.Len(t, parts[2], 9)
	})
}
