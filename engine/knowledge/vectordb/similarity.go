package vectordb

import (
	"fmt"
	"math"
	"sort"

	"github.com/janus-koncepts/wabot/engine/core"
)

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rank scores records against query and keeps the best TopK that pass MinScore.
// Ties are broken by ID so results are stable across runs.
func rank(records []Record, query []float32, opts SearchOptions) []Match {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	candidates := make([]Match, 0, len(records))
	for i := range records {
		rec := &records[i]
		score := cosineSimilarity(rec.Embedding, query)
		if !opts.Keeps(score) {
			continue
		}
		candidates = append(candidates, Match{
			ID:       rec.ID,
			Score:    score,
			Text:     rec.Text,
			Metadata: core.CloneMap(rec.Metadata),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

func checkDimension(id string, got, want int) error {
	if want > 0 && got != want {
		return &DimensionError{ID: id, Got: got, Want: want}
	}
	return nil
}

// DimensionError reports an embedding whose length differs from the index dimension.
type DimensionError struct {
	ID   string
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("vectordb: query dimension mismatch (got %d want %d)", e.Got, e.Want)
	}
	return fmt.Sprintf("vectordb: record %q dimension mismatch (got %d want %d)", e.ID, e.Got, e.Want)
}
