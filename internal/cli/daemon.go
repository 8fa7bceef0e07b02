package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ownership-validator/internal/api/handlers"
	"github.com/cloo-solutions/ownership-validator/internal/config"
	"github.com/cloo-solutions/ownership-validator/internal/logging"
	"github.com/cloo-solutions/ownership-validator/internal/mcpserver"
	"github.com/cloo-solutions/ownership-validator/internal/quiz"
	"github.com/cloo-solutions/ownership-validator/internal/server"
	"github.com/cloo-solutions/ownership-validator/internal/telemetry"
)

// daemonSetup loads configuration and builds the shared quiz factory. The API
// key is not required here: HTTP callers may send their own.
func daemonSetup() (*config.Config, *logrus.Logger, *quiz.Factory, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	log, err := logging.New(logging.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// 10% sampling in production, everything in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdown, _ := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
	}, log)

	factory, err := quiz.NewFactory(cfg, log)
	if err != nil {
		shutdown()
		return nil, nil, nil, nil, err
	}
	return cfg, log, factory, shutdown, nil
}

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Start the quiz HTTP server. POST /quiz generates a quiz for a file under LLM_WORKSPACE_ROOT.",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default: LLM_PORT or 8080)")
	bindEnv(cmd, "port", "LLM_PORT")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, factory, shutdownTelemetry, err := daemonSetup()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	quizHandler, err := handlers.NewQuizHandler(factory, cfg.WorkspaceRoot)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.RouterConfig{
		QuizHandler: quizHandler,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":      cfg.Port,
			"workspace": cfg.WorkspaceRoot,
		}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("shutting down...")

	// Generation can take minutes; give in-flight quizzes the request timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// MCPCmd returns the mcp command
func MCPCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the ownership_quiz tool over MCP stdio",
		Long:  "Serve the ownership_quiz tool to MCP clients over stdin and stdout. Logs go to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, factory, shutdownTelemetry, err := daemonSetup()
			if err != nil {
				return err
			}
			defer shutdownTelemetry()

			log.Debug("serving MCP on stdio")
			return mcpserver.ServeStdio(mcpserver.New(factory, version))
		},
	}
}
