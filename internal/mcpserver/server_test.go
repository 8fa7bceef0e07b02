package mcpserver

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ownership-validator/internal/config"
	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/cloo-solutions/ownership-validator/internal/quiz"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, target string, overrides config.Overrides) (*quiz.Result, error) {
	args := m.Called(ctx, target, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quiz.Result), args.Error(1)
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = ToolName
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleQuiz_Success(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, "main.go", config.Overrides{Model: "custom/model"}).
		Return(&quiz.Result{Response: "Q1. Why?"}, nil)

	res, err := handleQuiz(gen)(context.Background(), callTool(map[string]any{
		"path":  "main.go",
		"model": "custom/model",
	}))

	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Q1. Why?", resultText(t, res))
	gen.AssertExpectations(t)
}

func TestHandleQuiz_MissingPath(t *testing.T) {
	gen := new(MockGenerator)

	res, err := handleQuiz(gen)(context.Background(), callTool(map[string]any{}))

	require.NoError(t, err)
	assert.True(t, res.IsError)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleQuiz_PipelineError(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, "missing.go", config.Overrides{}).
		Return(nil, domain.InputError(domain.ErrCodeFileNotFound, "path not found: missing.go", nil))

	res, err := handleQuiz(gen)(context.Background(), callTool(map[string]any{"path": "missing.go"}))

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "FILE_NOT_FOUND")
}

func TestNew_RegistersTool(t *testing.T) {
	srv := New(new(MockGenerator), "test")

	require.NotNil(t, srv)
}
