// Package mcpserver exposes quiz generation as a Model Context Protocol tool.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cloo-solutions/ownership-validator/internal/config"
	"github.com/cloo-solutions/ownership-validator/internal/quiz"
)

const ToolName = "ownership_quiz"

type quizGenerator interface {
	Generate(ctx context.Context, target string, overrides config.Overrides) (*quiz.Result, error)
}

func New(gen quizGenerator, version string) *server.MCPServer {
	tool := mcp.NewTool(ToolName,
		mcp.WithDescription("Generate a 30-question ownership quiz for a source file or directory"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the source file or directory"),
		),
		mcp.WithString("model",
			mcp.Description("Generation model, overrides LLM_MODEL"),
		))

	srv := server.NewMCPServer("ownership-validator", version, server.WithToolCapabilities(false))
	srv.AddTool(tool, handleQuiz(gen))
	return srv
}

func handleQuiz(gen quizGenerator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := gen.Generate(ctx, path, config.Overrides{Model: request.GetString("model", "")})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(res.Response)), nil
	}
}

// ServeStdio blocks serving MCP over stdin and stdout.
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}
