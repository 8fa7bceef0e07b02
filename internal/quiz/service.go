// Package quiz runs the ownership quiz pipeline: load, index, retrieve,
// prompt, generate and present.
package quiz

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/cloo-solutions/ownership-validator/internal/index"
	"github.com/cloo-solutions/ownership-validator/internal/loader"
	"github.com/cloo-solutions/ownership-validator/internal/logging"
	"github.com/cloo-solutions/ownership-validator/internal/progress"
	"github.com/cloo-solutions/ownership-validator/internal/prompt"
	"github.com/cloo-solutions/ownership-validator/internal/telemetry"
)

// Query is the fixed retrieval query.
const Query = "Summarize the purpose, design, and logic of this code."

// Embedder generates one vector per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator turns a prompt into completion text.
type Generator interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

type Options struct {
	Model  string
	TopK   int
	Index  index.Options
	Filter loader.Filter

	// Interactive draws a progress bar and spinner on stderr.
	Interactive bool
	// Validate logs a QuizReport after generation. The report is always computed.
	Validate bool
	// Banner receives the quiz header. Nil skips it.
	Banner io.Writer
}

func DefaultOptions() Options {
	return Options{
		TopK:   index.DefaultTopK,
		Index:  index.DefaultOptions(),
		Filter: loader.DefaultFilter(),
	}
}

// Result records how far a run got and what it produced.
type Result struct {
	RunID     string
	Target    string
	Model     string
	Documents int
	Chunks    int
	Retrieved domain.RetrievalResult
	Prompt    string
	Response  domain.QuizResponse
	Report    domain.QuizReport
	Stage     domain.Stage
	// FailedAt is the stage that was current when the run failed.
	FailedAt domain.Stage
}

func (r *Result) advance() {
	if r.Stage.Terminal() {
		return
	}
	r.Stage, _ = r.Stage.Next()
}

func (r *Result) fail(err error) error {
	r.FailedAt = r.Stage
	r.Stage = domain.StageFailed
	return domain.WithStage(err, r.FailedAt)
}

type Service struct {
	embedder  Embedder
	generator Generator
	prompts   *prompt.Builder
	opts      Options
	log       logrus.FieldLogger
}

func NewService(embedder Embedder, generator Generator, prompts *prompt.Builder, opts Options, log logrus.FieldLogger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = index.DefaultTopK
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		embedder:  embedder,
		generator: generator,
		prompts:   prompts,
		opts:      opts,
		log:       log,
	}
}

// Run generates the quiz for target and writes it to out.
func (s *Service) Run(ctx context.Context, target string, out io.Writer) (*Result, error) {
	res, err := s.Generate(ctx, target)
	if err != nil {
		return res, err
	}

	if s.opts.Banner != nil {
		Banner(s.opts.Banner, target)
	}
	if err := Present(out, res.Response); err != nil {
		return res, res.fail(fmt.Errorf("failed to write quiz: %w", err))
	}
	res.advance()

	if s.opts.Validate {
		s.logReport(res)
	}
	res.advance()
	return res, nil
}

// Generate runs every stage up to and including generation. The returned
// Result is never nil; on error its Stage is Failed.
func (s *Service) Generate(ctx context.Context, target string) (*Result, error) {
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}
	model := s.opts.Model
	res := &Result{RunID: runID, Target: target, Model: model, Stage: domain.StageIdle}
	log := s.log.WithFields(logrus.Fields{"run_id": runID, "target": target})

	ctx, span := telemetry.StartSpan(ctx, "quiz.run", telemetry.SpanAttributes{
		RunID:  runID,
		Target: target,
		Model:  model,
	})
	defer span.End()

	err := s.generate(ctx, res, log)
	if err != nil {
		err = res.fail(err)
		span.SetError(err)
		log.WithError(err).WithField("stage", res.FailedAt).Debug("quiz run failed")
		return res, err
	}
	span.SetStatus(sentry.SpanStatusOK)
	return res, nil
}

func (s *Service) generate(ctx context.Context, res *Result, log logrus.FieldLogger) error {
	// Load
	docs, err := runStage(ctx, res, func(context.Context) ([]domain.SourceDocument, error) {
		return loader.LoadTarget(res.Target, s.opts.Filter)
	})
	if err != nil {
		return err
	}
	res.Documents = len(docs)
	log.WithField("documents", len(docs)).Debug("target loaded")
	res.advance()

	// Index
	ix, err := runStage(ctx, res, func(ctx context.Context) (*index.Index, error) {
		opts := s.opts.Index
		opts.Progress = progress.New(s.opts.Interactive, "Indexing")
		return index.Build(ctx, docs, s.embedder, opts)
	})
	if err != nil {
		return err
	}
	res.Chunks = ix.Len()
	log.WithField("chunks", ix.Len()).Debug("index built")
	res.advance()

	// Retrieve
	retrieved, err := runStage(ctx, res, func(ctx context.Context) (domain.RetrievalResult, error) {
		return ix.Search(ctx, s.embedder, Query, s.opts.TopK)
	})
	if err != nil {
		return err
	}
	res.Retrieved = retrieved
	log.WithField("retrieved", len(retrieved)).Debug("context retrieved")
	res.advance()

	// Prompt
	text, err := runStage(ctx, res, func(context.Context) (string, error) {
		return s.prompts.Build(res.Target, retrieved, ix)
	})
	if err != nil {
		return err
	}
	res.Prompt = text
	log.WithField("prompt_chars", len(text)).Debug("prompt built")
	res.advance()

	// Generate
	completion, err := runStage(ctx, res, func(ctx context.Context) (string, error) {
		stop := progress.StartSpinner(s.opts.Interactive, "Generating quiz")
		defer stop()
		return s.generator.Complete(ctx, res.Model, text)
	})
	if err != nil {
		return err
	}
	res.Response = domain.QuizResponse(completion)
	res.Report = Validate(res.Response)
	log.WithField("model", res.Model).Debug("quiz generated")
	res.advance()
	return nil
}

// runStage runs one pipeline step in a child span.
func runStage[T any](ctx context.Context, res *Result, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := telemetry.StartSpan(ctx, "quiz."+res.Stage.Step(), telemetry.SpanAttributes{
		RunID: res.RunID,
		Stage: string(res.Stage),
	})
	defer span.End()
	telemetry.AddBreadcrumb(ctx, "quiz", res.Stage.Step())

	out, err := fn(ctx)
	if err != nil {
		span.SetStatus(sentry.SpanStatusInternalError)
		return out, err
	}
	span.SetStatus(sentry.SpanStatusOK)
	return out, nil
}

func (s *Service) logReport(res *Result) {
	entry := s.log.WithFields(logrus.Fields{
		"run_id":    res.RunID,
		"questions": res.Report.QuestionCount,
		"expected":  res.Report.Expected,
	})
	if res.Report.Complete() {
		entry.Info("quiz has the expected questions and categories")
		return
	}
	if len(res.Report.MissingCategories) > 0 {
		entry = entry.WithField("missing_categories", res.Report.MissingCategories)
	}
	entry.Warn("quiz does not match the requested shape")
}

// Banner writes the quiz header for target.
func Banner(w io.Writer, target string) {
	rule := "========================================"
	fmt.Fprintf(w, "\n%s\nOWNERSHIP QUIZ FOR: %s\n%s\n\n", rule, filepath.Base(target), rule)
}

// Present writes the response verbatim.
func Present(w io.Writer, resp domain.QuizResponse) error {
	_, err := io.WriteString(w, string(resp))
	return err
}
