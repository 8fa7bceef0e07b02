package quiz

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/ownership-validator/internal/chunking"
	"github.com/cloo-solutions/ownership-validator/internal/config"
	"github.com/cloo-solutions/ownership-validator/internal/index"
	"github.com/cloo-solutions/ownership-validator/internal/loader"
	"github.com/cloo-solutions/ownership-validator/internal/openai"
	"github.com/cloo-solutions/ownership-validator/internal/prompt"
)

// Factory builds services from configuration. One Factory serves many runs,
// each with its own provider clients.
type Factory struct {
	cfg     *config.Config
	prompts *prompt.Builder
	log     logrus.FieldLogger

	// Filter applies to directory targets.
	Filter loader.Filter
	// Interactive, Validate and Banner are copied into every service.
	Interactive bool
	Validate    bool
	Banner      io.Writer
}

// NewFactory parses the prompt template once. A broken custom template is a
// ConfigurationError before any provider is contacted.
func NewFactory(cfg *config.Config, log logrus.FieldLogger) (*Factory, error) {
	prompts, err := prompt.Load(cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	return &Factory{
		cfg:     cfg,
		prompts: prompts,
		log:     log,
		Filter:  loader.DefaultFilter(),
	}, nil
}

// Config returns the base configuration.
func (f *Factory) Config() *config.Config {
	return f.cfg
}

// Service validates the configuration with overrides applied and wires the
// provider clients. Nothing is sent over the network here.
func (f *Factory) Service(o config.Overrides) (*Service, error) {
	cfg := f.cfg.WithOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	generator, err := openai.NewCompletionClient(openai.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	embedder := openai.NewEmbeddingClient(openai.Config{
		APIKey:  cfg.EmbeddingAPIKey,
		BaseURL: cfg.EmbeddingBaseURL,
		Timeout: cfg.RequestTimeout,
	}, cfg.EmbeddingModel)

	return NewService(embedder, generator, f.prompts, f.options(cfg), f.log), nil
}

func (f *Factory) options(cfg *config.Config) Options {
	ixOpts := index.DefaultOptions()
	ixOpts.Chunking = chunking.Config{
		MaxChars: cfg.ChunkSize,
		MinChars: cfg.ChunkSize / 3,
		Overlap:  cfg.ChunkOverlap,
	}
	return Options{
		Model:       cfg.Model,
		TopK:        cfg.TopK,
		Index:       ixOpts,
		Filter:      f.Filter,
		Interactive: f.Interactive,
		Validate:    f.Validate,
		Banner:      f.Banner,
	}
}

// Generate builds a service for o and runs it up to generation.
func (f *Factory) Generate(ctx context.Context, target string, o config.Overrides) (*Result, error) {
	svc, err := f.Service(o)
	if err != nil {
		return nil, err
	}
	return svc.Generate(ctx, target)
}
