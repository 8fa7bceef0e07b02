// Package index builds an in-memory vector index over source documents and
// answers top-K similarity queries against it.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cloo-solutions/ownership-validator/internal/chunking"
	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/cloo-solutions/ownership-validator/internal/progress"
)

const (
	DefaultBatchSize = 16
	DefaultTopK      = 5
)

// Embedder generates one vector per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Chunking  chunking.Config
	BatchSize int
	Progress  progress.Reporter
}

func DefaultOptions() Options {
	return Options{
		Chunking:  chunking.DefaultConfig(),
		BatchSize: DefaultBatchSize,
	}
}

// Index holds every chunk of the indexed documents and its embedding.
// vectors[i] belongs to chunks[i].
type Index struct {
	docs    []domain.SourceDocument
	chunks  []domain.Chunk
	vectors [][]float32
}

// Build chunks docs and embeds every chunk, one batch at a time. It returns
// either a complete index or an error, never a partial index.
func Build(ctx context.Context, docs []domain.SourceDocument, embedder Embedder, opts Options) (*Index, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		for _, c := range chunking.Split(doc, opts.Chunking) {
			c.Index = len(chunks)
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return nil, domain.InputError(domain.ErrCodeEmptyInput, "nothing to index", nil)
	}

	reporter.Start(len(chunks))
	defer reporter.Finish()

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, asEmbeddingError(err, fmt.Sprintf("failed to embed chunks %d-%d", start, end))
		}
		if len(batch) != len(texts) {
			return nil, domain.EmbeddingProviderError("malformed embedding response",
				fmt.Errorf("expected %d embeddings, got %d", len(texts), len(batch)))
		}
		vectors = append(vectors, batch...)
		reporter.Add(len(batch))
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dims {
			return nil, domain.EmbeddingProviderError("malformed embedding response",
				fmt.Errorf("chunk %d has %d dimensions, expected %d", i, len(v), dims))
		}
	}

	return &Index{docs: docs, chunks: chunks, vectors: vectors}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Chunks returns a copy of the indexed chunks in index order.
func (ix *Index) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, len(ix.chunks))
	copy(out, ix.chunks)
	return out
}

// Document returns the indexed document with the given path.
func (ix *Index) Document(path string) (domain.SourceDocument, bool) {
	for _, doc := range ix.docs {
		if doc.Path == path {
			return doc, true
		}
	}
	return domain.SourceDocument{}, false
}

// Search embeds query and returns at most k chunks, most similar first. Equal
// scores keep chunk order.
func (ix *Index) Search(ctx context.Context, embedder Embedder, query string, k int) (domain.RetrievalResult, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	out, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, asEmbeddingError(err, "failed to embed query")
	}
	if len(out) != 1 {
		return nil, domain.EmbeddingProviderError("malformed embedding response",
			fmt.Errorf("expected 1 embedding, got %d", len(out)))
	}
	queryVec := out[0]
	if len(ix.vectors) > 0 && len(queryVec) != len(ix.vectors[0]) {
		return nil, domain.EmbeddingProviderError("malformed embedding response",
			fmt.Errorf("query has %d dimensions, index has %d", len(queryVec), len(ix.vectors[0])))
	}

	return ix.rank(queryVec, k), nil
}

func (ix *Index) rank(queryVec []float32, k int) domain.RetrievalResult {
	results := make(domain.RetrievalResult, 0, len(ix.chunks))
	for i, c := range ix.chunks {
		results = append(results, domain.ScoredChunk{
			Chunk: c,
			Score: Similarity(queryVec, ix.vectors[i]),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// Similarity computes cosine similarity between two vectors of equal length.
// A zero vector, or one with a NaN or infinite component, has similarity 0
// with everything.
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return float32(sim)
}

func asEmbeddingError(err error, message string) error {
	if domain.Code(err) != "" {
		return err
	}
	return domain.EmbeddingProviderError(message, err)
}
