package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultTimeout matches the generous request timeout slow free-tier models need.
const DefaultTimeout = 360 * time.Second

var (
	// ErrEmptyText is returned when a text to embed is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrEmptyPrompt is returned when the prompt is empty
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// EmbeddingAPI defines the interface for batch embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatAPI defines the interface for a single chat completion
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, model, prompt string) (string, error)
}

// Config describes one OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func newAPIClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientCfg)
}

// EmbeddingAdapter calls the embeddings endpoint with go-openai.
type EmbeddingAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewEmbeddingAdapter(cfg Config, model string) *EmbeddingAdapter {
	return &EmbeddingAdapter{
		client: newAPIClient(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

// CreateEmbeddings returns one vector per input text, in input order.
func (a *EmbeddingAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

// ChatAdapter calls the chat completions endpoint with go-openai.
type ChatAdapter struct {
	client *openai.Client
}

func NewChatAdapter(cfg Config) *ChatAdapter {
	return &ChatAdapter{client: newAPIClient(cfg)}
}

// CreateChatCompletion sends prompt as a single user message.
func (a *ChatAdapter) CreateChatCompletion(ctx context.Context, model, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// EmbeddingClient validates and classifies embedding calls.
type EmbeddingClient struct {
	api EmbeddingAPI
}

func NewEmbeddingClient(cfg Config, model string) *EmbeddingClient {
	return &EmbeddingClient{api: NewEmbeddingAdapter(cfg, model)}
}

// NewEmbeddingClientWithAPI wraps an existing EmbeddingAPI.
func NewEmbeddingClientWithAPI(api EmbeddingAPI) *EmbeddingClient {
	return &EmbeddingClient{api: api}
}

// Embed returns one vector per text. All vectors share one non-zero length.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, domain.EmbeddingProviderError("invalid embedding input", ErrEmptyText)
		}
	}

	vectors, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, classify(err, domain.EmbeddingProviderError, "failed to create embedding")
	}

	if len(vectors) != len(texts) {
		return nil, domain.EmbeddingProviderError("malformed embedding response",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dims {
			return nil, domain.EmbeddingProviderError("malformed embedding response",
				fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dims))
		}
	}

	return vectors, nil
}

// CompletionClient validates and classifies chat completion calls.
type CompletionClient struct {
	api ChatAPI
}

// NewCompletionClient refuses to build a client without credentials, so no
// request can leave without an API key.
func NewCompletionClient(cfg Config) (*CompletionClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.ConfigurationError("LLM_API_KEY not found in environment variables or arguments")
	}
	return &CompletionClient{api: NewChatAdapter(cfg)}, nil
}

// NewCompletionClientWithAPI wraps an existing ChatAPI.
func NewCompletionClientWithAPI(api ChatAPI) *CompletionClient {
	return &CompletionClient{api: api}
}

// Complete makes exactly one completion request.
func (c *CompletionClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.GenerationProviderError("invalid completion input", ErrEmptyPrompt)
	}

	text, err := c.api.CreateChatCompletion(ctx, model, prompt)
	if err != nil {
		return "", classify(err, domain.GenerationProviderError, "failed to create completion")
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.GenerationProviderError("malformed completion response", errors.New("empty completion"))
	}
	return text, nil
}

// classify turns a rejected credential into an AuthenticationError and every
// other failure into the provider error built by fallback.
func classify(err error, fallback func(string, error) *domain.DomainError, message string) error {
	if status := statusCode(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
		return domain.AuthenticationError("credential rejected by provider", err)
	}
	return fallback(message, err)
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
