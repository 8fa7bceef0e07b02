package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultModel            = "z-ai/glm-4.7-flash:free"
	DefaultBaseURL          = "https://openrouter.ai/api/v1"
	DefaultEmbeddingModel   = "nomic-embed-text"
	DefaultEmbeddingBaseURL = "http://localhost:11434/v1"
)

type Config struct {
	Model   string `envconfig:"MODEL" default:"z-ai/glm-4.7-flash:free"`
	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL" default:"https://openrouter.ai/api/v1"`

	// Embeddings default to a local Ollama server speaking the OpenAI protocol.
	EmbeddingModel   string `envconfig:"EMBEDDING_MODEL" default:"nomic-embed-text"`
	EmbeddingBaseURL string `envconfig:"EMBEDDING_BASE_URL" default:"http://localhost:11434/v1"`
	EmbeddingAPIKey  string `envconfig:"EMBEDDING_API_KEY"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"360s"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`
	TopK         int `envconfig:"TOP_K" default:"5"`

	PromptFile string `envconfig:"PROMPT_FILE"`

	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Daemon settings
	Port          string `envconfig:"PORT" default:"8080"`
	WorkspaceRoot string `envconfig:"WORKSPACE_ROOT" default:"."`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// Overrides carries command-line values. Empty fields leave the loaded value alone.
type Overrides struct {
	Model            string
	APIKey           string
	BaseURL          string
	EmbeddingModel   string
	EmbeddingBaseURL string
	PromptFile       string
	TopK             int
	Debug            bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LLM", &cfg); err != nil {
		return nil, domain.ConfigurationError(fmt.Sprintf("failed to process config: %v", err))
	}

	return &cfg, nil
}

// WithOverrides returns a copy of c with the non-empty overrides applied.
// Flags win over environment variables, which win over defaults.
func (c *Config) WithOverrides(o Overrides) *Config {
	out := *c
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.APIKey != "" {
		out.APIKey = o.APIKey
	}
	if o.BaseURL != "" {
		out.BaseURL = o.BaseURL
	}
	if o.EmbeddingModel != "" {
		out.EmbeddingModel = o.EmbeddingModel
	}
	if o.EmbeddingBaseURL != "" {
		out.EmbeddingBaseURL = o.EmbeddingBaseURL
	}
	if o.PromptFile != "" {
		out.PromptFile = o.PromptFile
	}
	if o.TopK > 0 {
		out.TopK = o.TopK
	}
	if o.Debug {
		out.Debug = true
	}
	return &out
}

// Validate must pass before any provider is contacted.
func (c *Config) Validate() error {
	if !c.HasAPIKey() {
		return domain.ConfigurationError("LLM_API_KEY not found in environment variables or arguments")
	}
	if strings.TrimSpace(c.Model) == "" {
		return domain.ConfigurationError("model is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return domain.ConfigurationError("base URL is required")
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return domain.ConfigurationError("embedding model is required")
	}
	if c.ChunkSize <= 0 {
		return domain.ConfigurationError("chunk size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return domain.ConfigurationError("chunk overlap must be between 0 and chunk size")
	}
	if c.TopK <= 0 {
		return domain.ConfigurationError("top-k must be positive")
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return domain.ConfigurationError(fmt.Sprintf("unknown log format %q", c.LogFormat))
	}
	return nil
}

func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
