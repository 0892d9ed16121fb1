package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/janus-koncepts/wabot/engine/core"
)

const (
	MetaChunkIndex = "chunk_index"
	MetaSourceID   = "source_id"
)

var (
	newlinePattern = regexp.MustCompile(`\r\n|\r`)
	separators     = []string{"\n\n", "\n", " ", ""}
)

// Processor splits documents into overlapping chunks measured in characters.
type Processor struct {
	settings Settings
	splitter textsplitter.RecursiveCharacter
}

// NewProcessor validates settings and prepares the splitter.
func NewProcessor(settings Settings) (*Processor, error) {
	if settings.Size <= 0 {
		return nil, errors.New("chunk: size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	return &Processor{
		settings: settings,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(settings.Size),
			textsplitter.WithChunkOverlap(settings.Overlap),
			textsplitter.WithSeparators(separators),
		),
	}, nil
}

// Settings returns the effective chunk settings.
func (p *Processor) Settings() Settings {
	return p.settings
}

// Process splits documents in order. Chunk order follows document order, then
// position within each document.
func (p *Processor) Process(docs []Document) ([]Chunk, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	chunks := make([]Chunk, 0, len(docs))
	for di := range docs {
		doc := docs[di]
		text := normalize(doc.Text)
		if text == "" {
			continue
		}
		segments, err := p.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("chunk: split document %s: %w", doc.ID, err)
		}
		idx := 0
		for _, segment := range p.enforceLimit(segments) {
			chunkText := strings.TrimSpace(segment)
			if chunkText == "" {
				continue
			}
			hash := hashText(chunkText)
			metadata := core.CloneMap(doc.Metadata)
			if metadata == nil {
				metadata = make(map[string]any)
			}
			metadata[MetaChunkIndex] = idx
			metadata[MetaSourceID] = doc.ID
			chunks = append(chunks, Chunk{
				ID:       hashText(fmt.Sprintf("%s::%d::%s", doc.ID, idx, hash)),
				Text:     chunkText,
				Hash:     hash,
				Metadata: metadata,
			})
			idx++
		}
	}
	return chunks, nil
}

// enforceLimit re-splits any segment the splitter could not bring under the size.
func (p *Processor) enforceLimit(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if utf8.RuneCountInString(segment) <= p.settings.Size {
			out = append(out, segment)
			continue
		}
		out = append(out, hardSplit(segment, p.settings.Size, p.settings.Overlap)...)
	}
	return out
}

func hardSplit(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	var parts []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		parts = append(parts, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return parts
}

func normalize(text string) string {
	return strings.TrimSpace(newlinePattern.ReplaceAllString(text, "\n"))
}

func hashText(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
