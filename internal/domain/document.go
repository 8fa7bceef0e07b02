package domain

import (
	"fmt"
	"strings"
)

// SourceDocument is the raw text of one target file.
type SourceDocument struct {
	Path string
	Text string
}

// NewSourceDocument creates a new SourceDocument instance
func NewSourceDocument(path, text string) SourceDocument {
	return SourceDocument{Path: path, Text: text}
}

// Chunk is a contiguous slice of a SourceDocument. Offset is a byte offset into
// the document text.
type Chunk struct {
	Index  int
	Path   string
	Offset int
	Text   string
}

// End returns the byte offset just past the chunk.
func (c Chunk) End() int {
	return c.Offset + len(c.Text)
}

// Lines returns the 1-based first and last line the chunk covers in doc.
func (c Chunk) Lines(doc SourceDocument) (int, int) {
	if c.Offset > len(doc.Text) {
		return 0, 0
	}
	first := strings.Count(doc.Text[:c.Offset], "\n") + 1
	last := first + strings.Count(strings.TrimSuffix(c.Text, "\n"), "\n")
	return first, last
}

// ValidateChunk checks that c is found in doc at its offset.
func ValidateChunk(c Chunk, doc SourceDocument) error {
	if c.Text == "" {
		return fmt.Errorf("chunk %d is empty", c.Index)
	}
	if c.Path != doc.Path {
		return fmt.Errorf("chunk %d belongs to %s, not %s", c.Index, c.Path, doc.Path)
	}
	if c.Offset < 0 || c.End() > len(doc.Text) {
		return fmt.Errorf("chunk %d offset %d out of range", c.Index, c.Offset)
	}
	if doc.Text[c.Offset:c.End()] != c.Text {
		return fmt.Errorf("chunk %d text does not match document at offset %d", c.Index, c.Offset)
	}
	return nil
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// RetrievalResult is ordered most similar first.
type RetrievalResult []ScoredChunk

// Chunks returns the chunks without scores.
func (r RetrievalResult) Chunks() []Chunk {
	out := make([]Chunk, 0, len(r))
	for _, sc := range r {
		out = append(out, sc.Chunk)
	}
	return out
}
