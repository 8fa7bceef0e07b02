package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type docs map[string]domain.SourceDocument

func (d docs) Document(path string) (domain.SourceDocument, bool) {
	doc, ok := d[path]
	return doc, ok
}

func retrieved(t *testing.T) (domain.RetrievalResult, docs) {
	t.Helper()
	doc := domain.NewSourceDocument("svc/retry.go", "package svc\n\nfunc retry() {\n\tfor i := 0; i < 3; i++ {\n\t}\n}\n")
	offset := strings.Index(doc.Text, "func retry")
	chunk := domain.Chunk{Index: 0, Path: doc.Path, Offset: offset, Text: doc.Text[offset:]}
	require.NoError(t, domain.ValidateChunk(chunk, doc))
	return domain.RetrievalResult{{Chunk: chunk, Score: 0.9}}, docs{doc.Path: doc}
}

func TestDefault_Build(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "embedded", b.Source())

	result, d := retrieved(t)
	out, err := b.Build("svc/retry.go", result, d)

	require.NoError(t, err)
	assert.Contains(t, out, "You are analyzing the codebase located at: svc/retry.go")
	assert.Contains(t, out, result[0].Chunk.Text)
	assert.Contains(t, out, "--- svc/retry.go (lines 3-6) ---")
	assert.Contains(t, out, "exactly 30 questions")
	assert.Contains(t, out, "Q1 to Q30")
	for i, c := range domain.Categories() {
		assert.Contains(t, out, string(c))
		if i > 0 {
			assert.Less(t, strings.Index(out, string(domain.Categories()[i-1])), strings.Index(out, string(c)))
		}
	}
	assert.Contains(t, out, "Ground every question in the code")
}

func TestBuild_EveryChunkIncluded(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	result := domain.RetrievalResult{
		{Chunk: domain.Chunk{Index: 0, Path: "a.go", Offset: 0, Text: "alpha()"}},
		{Chunk: domain.Chunk{Index: 1, Path: "b.go", Offset: 10, Text: "beta()"}},
	}
	out, err := b.Build("repo", result, nil)

	require.NoError(t, err)
	assert.Contains(t, out, "alpha()")
	assert.Contains(t, out, "beta()")
	assert.Contains(t, out, "--- b.go (bytes 10-16) ---")
	assert.NotContains(t, out, "(lines")
}

func TestBuild_Deterministic(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	result, d := retrieved(t)

	first, err := b.Build("x", result, d)
	require.NoError(t, err)
	second, err := b.Build("x", result, d)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParse_Errors(t *testing.T) {
	allCategories := "Deep Logic Handling, System Design Decisions, Weird Logic Explanations, Maintenance Obstacles"

	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{
			name:    "invalid yaml",
			yaml:    "quiz_generation_prompt: [",
			message: "invalid prompt file",
		},
		{
			name:    "missing key",
			yaml:    "other: hello\n",
			message: "'quiz_generation_prompt' not found",
		},
		{
			name:    "bad template",
			yaml:    "quiz_generation_prompt: \"{{ .Count \"\n",
			message: "invalid prompt template",
		},
		{
			name:    "unknown field",
			yaml:    "quiz_generation_prompt: \"{{ .Nope }}\"\n",
			message: "failed to render",
		},
		{
			name:    "drops count",
			yaml:    "quiz_generation_prompt: \"Ask questions about {{ range .Context }}{{ .Text }}{{ end }} in " + allCategories + "\"\n",
			message: "question count",
		},
		{
			name:    "drops category",
			yaml:    "quiz_generation_prompt: \"Ask {{ .Count }} questions about {{ range .Context }}{{ .Text }}{{ end }} in Deep Logic Handling\"\n",
			message: "System Design Decisions",
		},
		{
			name:    "drops context",
			yaml:    "quiz_generation_prompt: \"Ask {{ .Count }} questions in " + allCategories + "\"\n",
			message: "retrieved code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "custom.yaml")

			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad_CustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "quiz_generation_prompt: |\n" +
		"  {{ .Count }} questions for {{ .Target }}.\n" +
		"  {{ range .Categories }}{{ . }};{{ end }}\n" +
		"  {{ range .Context }}{{ .Text }}{{ end }}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, b.Source())

	result, d := retrieved(t)
	out, err := b.Build("svc", result, d)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "30 questions for svc.\n"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestLoad_EmptyPathUsesEmbedded(t *testing.T) {
	b, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "embedded", b.Source())
}
