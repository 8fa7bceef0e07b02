// Package logging builds the process logger. Everything goes to stderr so
// stdout carries only the quiz.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Options struct {
	Debug  bool
	Format string
	Out    io.Writer
}

type ctxKey int

const (
	runIDKey ctxKey = iota
	requestIDKey
	loggerKey
)

// New returns a configured logger. An unknown format is an error.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if opts.Out != nil {
		log.SetOutput(opts.Out)
	}

	switch opts.Format {
	case "", FormatText:
		log.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp:       true,
			DisableLevelTruncation: true,
		})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	log.SetLevel(logrus.InfoLevel)
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log, nil
}

// Discard returns a logger that writes nowhere. Used by tests and library callers.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores log in ctx for WithContext to pick up.
func WithLogger(ctx context.Context, log logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// WithContext returns an entry tagged with the run and request IDs found in ctx.
// It uses the logger stored by WithLogger, or the logrus standard logger.
func WithContext(ctx context.Context) *logrus.Entry {
	var entry *logrus.Entry
	switch l := ctx.Value(loggerKey).(type) {
	case *logrus.Logger:
		entry = logrus.NewEntry(l)
	case *logrus.Entry:
		entry = l
	case logrus.FieldLogger:
		entry = l.WithFields(logrus.Fields{})
	default:
		entry = logrus.NewEntry(logrus.StandardLogger())
	}

	fields := logrus.Fields{}
	if id := RunID(ctx); id != "" {
		fields["run_id"] = id
	}
	if id := RequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if len(fields) == 0 {
		return entry
	}
	return entry.WithFields(fields)
}
