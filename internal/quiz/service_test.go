package quiz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/ownership-validator/internal/chunking"
	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/cloo-solutions/ownership-validator/internal/index"
	"github.com/cloo-solutions/ownership-validator/internal/logging"
	"github.com/cloo-solutions/ownership-validator/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGenerator mocks the text-generation provider
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Complete(ctx context.Context, model, prompt string) (string, error) {
	args := m.Called(ctx, model, prompt)
	return args.String(0), args.Error(1)
}

// fakeEmbedder embeds by keyword counts and records every call.
type fakeEmbedder struct {
	keywords []string
	calls    int
	err      error
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(e.keywords)+1)
		for j, kw := range e.keywords {
			v[j] = float32(strings.Count(strings.ToLower(text), kw))
		}
		v[len(e.keywords)] = 0.01
		out[i] = v
	}
	return out, nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed pipe")
}

func quizText() string {
	var b strings.Builder
	categories := domain.Categories()
	for i := 1; i <= domain.QuestionCount; i++ {
		if (i-1)%8 == 0 && (i-1)/8 < len(categories) {
			fmt.Fprintf(&b, "## %s\n", categories[(i-1)/8])
		}
		fmt.Fprintf(&b, "Q%d. Why does handler %d retry?\n", i, i)
	}
	return b.String()
}

func writeSource(t *testing.T, dir, name string, lines int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("package sample\n")
	for i := 1; i < lines; i++ {
		fmt.Fprintf(&b, "// line %d: the design of the retry logic and its purpose\n", i)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func newService(t *testing.T, embedder Embedder, generator Generator, opts Options) *Service {
	t.Helper()
	builder, err := prompt.Default()
	require.NoError(t, err)
	opts.Model = "test-model"
	opts.Index = index.Options{
		Chunking:  chunking.Config{MaxChars: 400, MinChars: 100, Overlap: 50},
		BatchSize: 4,
	}
	return NewService(embedder, generator, builder, opts, logging.Discard())
}

func TestRun_EndToEnd(t *testing.T) {
	path := writeSource(t, t.TempDir(), "sample.go", 50)
	embedder := &fakeEmbedder{keywords: []string{"design", "logic", "purpose"}}
	generator := new(MockGenerator)
	response := quizText()
	generator.On("Complete", mock.Anything, "test-model", mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "exactly 30 questions") &&
			strings.Contains(p, "the design of the retry logic") &&
			strings.Contains(p, path)
	})).Return(response, nil).Once()

	var out, banner bytes.Buffer
	opts := DefaultOptions()
	opts.Banner = &banner
	svc := newService(t, embedder, generator, opts)

	res, err := svc.Run(context.Background(), path, &out)

	require.NoError(t, err)
	assert.Equal(t, response, out.String())
	assert.Equal(t, domain.StageDone, res.Stage)
	assert.Empty(t, res.FailedAt)
	assert.Equal(t, 1, res.Documents)
	assert.Greater(t, res.Chunks, 1)
	assert.LessOrEqual(t, len(res.Retrieved), index.DefaultTopK)
	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.Report.Complete())
	assert.Contains(t, banner.String(), "OWNERSHIP QUIZ FOR: sample.go")
	generator.AssertExpectations(t)
}

func TestRun_DirectoryTarget(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.go", 10)
	writeSource(t, dir, "b.go", 10)
	embedder := &fakeEmbedder{keywords: []string{"design"}}
	generator := new(MockGenerator)
	generator.On("Complete", mock.Anything, "test-model", mock.Anything).Return(quizText(), nil).Once()

	svc := newService(t, embedder, generator, DefaultOptions())
	res, err := svc.Run(context.Background(), dir, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	generator.AssertExpectations(t)
}

func TestRun_MissingPathMakesNoCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.go")
	embedder := &fakeEmbedder{}
	generator := new(MockGenerator)

	var out bytes.Buffer
	svc := newService(t, embedder, generator, DefaultOptions())
	res, err := svc.Run(context.Background(), path, &out)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))
	assert.Contains(t, err.Error(), "load:")
	assert.Contains(t, err.Error(), path)
	assert.Equal(t, domain.StageFailed, res.Stage)
	assert.Equal(t, domain.StageIdle, res.FailedAt)
	assert.Zero(t, embedder.calls)
	assert.Empty(t, out.String())
	generator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_EmbeddingFailure(t *testing.T) {
	path := writeSource(t, t.TempDir(), "sample.go", 20)
	embedder := &fakeEmbedder{err: domain.EmbeddingProviderError("failed to create embedding", errors.New("connection refused"))}
	generator := new(MockGenerator)

	svc := newService(t, embedder, generator, DefaultOptions())
	res, err := svc.Run(context.Background(), path, &bytes.Buffer{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingProvider))
	assert.Contains(t, err.Error(), "index:")
	assert.Equal(t, domain.StageLoaded, res.FailedAt)
	assert.Equal(t, 1, embedder.calls)
	generator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_AuthenticationFailure(t *testing.T) {
	path := writeSource(t, t.TempDir(), "sample.go", 20)
	embedder := &fakeEmbedder{keywords: []string{"design"}}
	generator := new(MockGenerator)
	generator.On("Complete", mock.Anything, "test-model", mock.Anything).
		Return("", domain.AuthenticationError("credential rejected by provider", errors.New("401"))).Once()

	var out bytes.Buffer
	svc := newService(t, embedder, generator, DefaultOptions())
	res, err := svc.Run(context.Background(), path, &out)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthentication))
	assert.Contains(t, err.Error(), "generate:")
	assert.Equal(t, domain.StagePrompted, res.FailedAt)
	assert.Empty(t, out.String())
	generator.AssertExpectations(t)
}

// ctxGenerator fails with the context's error once it is done.
type ctxGenerator struct{}

func (ctxGenerator) Complete(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRun_CancelledContext(t *testing.T) {
	path := writeSource(t, t.TempDir(), "sample.go", 20)
	embedder := &fakeEmbedder{keywords: []string{"design"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	svc := newService(t, embedder, ctxGenerator{}, DefaultOptions())
	res, err := svc.Run(ctx, path, &out)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, domain.StageFailed, res.Stage)
	assert.Equal(t, domain.StagePrompted, res.FailedAt)
	assert.Empty(t, out.String())
}

func TestRun_PresentFailure(t *testing.T) {
	path := writeSource(t, t.TempDir(), "sample.go", 20)
	embedder := &fakeEmbedder{keywords: []string{"design"}}
	generator := new(MockGenerator)
	generator.On("Complete", mock.Anything, "test-model", mock.Anything).Return(quizText(), nil).Once()

	svc := newService(t, embedder, generator, DefaultOptions())
	res, err := svc.Run(context.Background(), path, failingWriter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "present:")
	assert.Contains(t, err.Error(), "closed pipe")
	assert.Equal(t, domain.StageGenerated, res.FailedAt)
}

func TestGenerate_KeepsRunIDFromContext(t *testing.T) {
	path := writeSource(t, t.TempDir(), "sample.go", 20)
	embedder := &fakeEmbedder{keywords: []string{"design"}}
	generator := new(MockGenerator)
	generator.On("Complete", mock.Anything, "test-model", mock.Anything).Return("Q1. why?", nil).Once()

	svc := newService(t, embedder, generator, DefaultOptions())
	ctx := logging.WithRunID(context.Background(), "run-42")
	res, err := svc.Generate(ctx, path)

	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, domain.StageGenerated, res.Stage)
	assert.Equal(t, 1, res.Report.QuestionCount)
	assert.False(t, res.Report.Complete())
}

func TestRun_ValidateNeverChangesOutput(t *testing.T) {
	path := writeSource(t, t.TempDir(), "sample.go", 20)
	embedder := &fakeEmbedder{keywords: []string{"design"}}
	generator := new(MockGenerator)
	generator.On("Complete", mock.Anything, "test-model", mock.Anything).Return("just one question?", nil).Once()

	opts := DefaultOptions()
	opts.Validate = true
	svc := newService(t, embedder, generator, opts)

	var out bytes.Buffer
	res, err := svc.Run(context.Background(), path, &out)

	require.NoError(t, err)
	assert.Equal(t, "just one question?", out.String())
	assert.Equal(t, domain.StageDone, res.Stage)
	assert.Len(t, res.Report.MissingCategories, 4)
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	Banner(&buf, "/srv/app/main.go")

	rule := strings.Repeat("=", 40)
	assert.Equal(t, "\n"+rule+"\nOWNERSHIP QUIZ FOR: main.go\n"+rule+"\n\n", buf.String())
}
