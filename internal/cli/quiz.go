package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ownership-validator/internal/config"
	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/cloo-solutions/ownership-validator/internal/loader"
	"github.com/cloo-solutions/ownership-validator/internal/logging"
	"github.com/cloo-solutions/ownership-validator/internal/progress"
	"github.com/cloo-solutions/ownership-validator/internal/quiz"
	"github.com/cloo-solutions/ownership-validator/internal/telemetry"
)

type quizFlags struct {
	model        string
	apiKey       string
	baseURL      string
	embedding    string
	embeddingURL string
	prompts      string
	topK         int
	include      []string
	exclude      []string
	validate     bool
	verbose      bool
}

func (f quizFlags) overrides() config.Overrides {
	return config.Overrides{
		Model:            f.model,
		APIKey:           f.apiKey,
		BaseURL:          f.baseURL,
		EmbeddingModel:   f.embedding,
		EmbeddingBaseURL: f.embeddingURL,
		PromptFile:       f.prompts,
		TopK:             f.topK,
		Debug:            f.verbose,
	}
}

func (f quizFlags) filter() loader.Filter {
	filter := loader.DefaultFilter()
	if len(f.include) > 0 {
		filter.Include = f.include
	}
	filter.Exclude = append(filter.Exclude, f.exclude...)
	return filter
}

// QuizCmd returns the ownership root command.
func QuizCmd(version string) *cobra.Command {
	var f quizFlags

	cmd := &cobra.Command{
		Use:   "ownership <path>",
		Short: "Generate an ownership quiz for a source file or directory",
		Long: `If you can't explain the system, then you don't own it.

Generates a 30-question quiz about a source file or directory. The quiz is
printed to stdout; progress and logs go to stderr.

Environment variables:
  LLM_API_KEY              generation API key (required)
  LLM_BASE_URL             generation endpoint (default: ` + config.DefaultBaseURL + `)
  LLM_MODEL                generation model (default: ` + config.DefaultModel + `)
  LLM_EMBEDDING_BASE_URL   embedding endpoint (default: ` + config.DefaultEmbeddingBaseURL + `)
  LLM_EMBEDDING_MODEL      embedding model (default: ` + config.DefaultEmbeddingModel + `)`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runQuiz(ctx, args[0], f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&f.model, "model", "", "LLM model to use (default: "+config.DefaultModel+")")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "LLM API key (overrides LLM_API_KEY)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "LLM base URL (overrides LLM_BASE_URL)")
	cmd.Flags().StringVar(&f.embedding, "embedding", "", "Embedding model (default: "+config.DefaultEmbeddingModel+")")
	cmd.Flags().StringVar(&f.embeddingURL, "embedding-url", "", "Embedding base URL (default: "+config.DefaultEmbeddingBaseURL+")")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "Number of chunks to retrieve (default: 5)")
	cmd.Flags().StringVar(&f.prompts, "prompts", "", "YAML file with a custom quiz_generation_prompt")
	cmd.Flags().StringArrayVar(&f.include, "include", nil, "Glob of files to include in directory mode (repeatable)")
	cmd.Flags().StringArrayVar(&f.exclude, "exclude", nil, "Glob of files to exclude in directory mode (repeatable)")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "Report question count and category coverage on stderr")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	for flag, env := range map[string]string{
		"model":         "LLM_MODEL",
		"api-key":       "LLM_API_KEY",
		"base-url":      "LLM_BASE_URL",
		"embedding":     "LLM_EMBEDDING_MODEL",
		"embedding-url": "LLM_EMBEDDING_BASE_URL",
		"top-k":         "LLM_TOP_K",
		"prompts":       "LLM_PROMPT_FILE",
		"verbose":       "LLM_DEBUG",
	} {
		bindEnv(cmd, flag, env)
	}
	AddHelpJSONFlag(cmd)

	return cmd
}

func runQuiz(ctx context.Context, target string, f quizFlags, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg = cfg.WithOverrides(f.overrides())
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Debug: cfg.Debug, Format: cfg.LogFormat, Out: stderr})
	if err != nil {
		return err
	}

	shutdown, _ := telemetry.Init(telemetry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	}, log)
	defer shutdown()

	factory, err := quiz.NewFactory(cfg, log)
	if err != nil {
		return err
	}
	factory.Filter = f.filter()
	factory.Interactive = stderr == os.Stderr && progress.DefaultEnabled()
	factory.Validate = f.validate
	factory.Banner = stderr

	svc, err := factory.Service(config.Overrides{})
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"model":     cfg.Model,
		"embedding": cfg.EmbeddingModel,
	}).Infof("Investigating target: %s", target)

	if _, err := svc.Run(ctx, target, stdout); err != nil {
		if cfg.HasSentry() && !domain.IsInputError(err) {
			telemetry.CaptureError(ctx, err)
		}
		return err
	}
	return nil
}
