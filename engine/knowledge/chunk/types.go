package chunk

// Document represents raw content prior to chunking. A PDF yields one Document per page.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Settings configures chunking.
type Settings struct {
	Size    int
	Overlap int
}

// Chunk represents a processed slice ready for embedding.
type Chunk struct {
	ID       string
	Text     string
	Hash     string
	Metadata map[string]any
}
