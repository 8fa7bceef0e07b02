package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goSource(lines int) string {
	var b strings.Builder
	b.WriteString("package sample\n\n")
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "func step%d(x int) int { return x*%d + %d }\n", i, i, i)
	}
	return b.String()
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split(domain.NewSourceDocument("a.go", ""), DefaultConfig()))
	assert.Nil(t, Split(domain.NewSourceDocument("a.go", " \n\t\n"), DefaultConfig()))
}

func TestSplit_ShortDocumentIsOneChunk(t *testing.T) {
	doc := domain.NewSourceDocument("a.go", "package a\n\nfunc A() {}\n")

	chunks := Split(doc, DefaultConfig())

	require.Len(t, chunks, 1)
	assert.Equal(t, doc.Text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, "a.go", chunks[0].Path)
}

func TestSplit_ChunksAreSlicesAtOffsets(t *testing.T) {
	doc := domain.NewSourceDocument("sample.go", goSource(200))
	cfg := Config{MaxChars: 300, MinChars: 100, Overlap: 50}

	chunks := Split(doc, cfg)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		require.NoError(t, domain.ValidateChunk(c, doc))
		assert.LessOrEqual(t, len([]rune(c.Text)), cfg.MaxChars)
	}
}

func TestSplit_CoversWholeDocument(t *testing.T) {
	doc := domain.NewSourceDocument("sample.go", goSource(120))
	chunks := Split(doc, Config{MaxChars: 250, MinChars: 80, Overlap: 40})

	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.Equal(t, len(doc.Text), chunks[len(chunks)-1].End())
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].Offset, chunks[i-1].End(), "gap before chunk %d", i)
		assert.Greater(t, chunks[i].Offset, chunks[i-1].Offset, "chunk %d does not advance", i)
	}
}

func TestSplit_PrefersLineBoundaries(t *testing.T) {
	doc := domain.NewSourceDocument("sample.go", goSource(100))

	chunks := Split(doc, Config{MaxChars: 400, MinChars: 100, Overlap: 0})

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c.Text, "\n"), "chunk %d should end at a newline", c.Index)
	}
}

func TestSplit_MultibyteRunes(t *testing.T) {
	line := "// représentation des données: 数据结构 ✓\n"
	doc := domain.NewSourceDocument("u.go", strings.Repeat(line, 60))

	chunks := Split(doc, Config{MaxChars: 200, MinChars: 50, Overlap: 30})

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.NoError(t, domain.ValidateChunk(c, doc))
	}
}

func TestSplit_NoWhitespaceStillAdvances(t *testing.T) {
	doc := domain.NewSourceDocument("min.js", strings.Repeat("x", 1000))

	chunks := Split(doc, Config{MaxChars: 300, MinChars: 100, Overlap: 50})

	require.NotEmpty(t, chunks)
	assert.Equal(t, len(doc.Text), chunks[len(chunks)-1].End())
}

func TestSplit_MaxChunks(t *testing.T) {
	doc := domain.NewSourceDocument("sample.go", goSource(200))

	chunks := Split(doc, Config{MaxChars: 200, MinChars: 50, Overlap: 0, MaxChunks: 3})

	assert.Len(t, chunks, 3)
}

func TestSplit_Deterministic(t *testing.T) {
	doc := domain.NewSourceDocument("sample.go", goSource(150))
	cfg := DefaultConfig()

	assert.Equal(t, Split(doc, cfg), Split(doc, cfg))
}
