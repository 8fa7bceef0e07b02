// Package chunking splits source documents into bounded, overlapping chunks
// whose text is always an exact slice of the document.
package chunking

import (
	"strings"
	"unicode"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
)

// Config controls chunking for document embeddings.
type Config struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultConfig provides sane defaults for chunking source code.
func DefaultConfig() Config {
	return Config{
		MaxChars:  1200,
		MinChars:  400,
		Overlap:   200,
		MaxChunks: 0,
	}
}

// Split cuts doc into chunks. Sizes are measured in runes; offsets in bytes.
// Cuts prefer the last newline in the window, then the last whitespace, and
// never land before MinChars. Whitespace-only chunks are dropped, so a document
// with any visible text yields at least one chunk.
func Split(doc domain.SourceDocument, cfg Config) []domain.Chunk {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultConfig()
	}

	runes := []rune(text)
	n := len(runes)
	pos := make([]int, n+1)
	offset := 0
	for i, r := range runes {
		pos[i] = offset
		offset += len(string(r))
	}
	pos[n] = offset

	chunks := make([]domain.Chunk, 0, n/cfg.MaxChars+1)
	start := 0
	for start < n {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.MaxChars
		if end > n {
			end = n
		}
		if end < n {
			end = cutPoint(runes, start, end, cfg.MinChars)
		}
		if end <= start {
			break
		}

		body := text[pos[start]:pos[end]]
		if strings.TrimSpace(body) != "" {
			chunks = append(chunks, domain.Chunk{
				Index:  len(chunks),
				Path:   doc.Path,
				Offset: pos[start],
				Text:   body,
			})
		}

		if end >= n {
			break
		}
		start = nextStart(runes, start, end, cfg.Overlap)
	}

	return chunks
}

func cutPoint(runes []rune, start, end, minChars int) int {
	minCut := start + minChars
	if minCut >= end {
		minCut = start
	}
	for i := end; i > minCut; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// nextStart backs up by overlap runes and then moves forward to the next line
// start inside the overlap, if there is one.
func nextStart(runes []rune, start, end, overlap int) int {
	next := end
	if overlap > 0 && end-start > overlap {
		next = end - overlap
		for i := next; i < end; i++ {
			if runes[i] == '\n' {
				next = i + 1
				break
			}
		}
	}
	if next <= start {
		next = end
	}
	return next
}
