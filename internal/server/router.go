package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/ownership-validator/internal/api"
	"github.com/cloo-solutions/ownership-validator/internal/api/handlers"
	"github.com/cloo-solutions/ownership-validator/internal/api/middleware"
)

type RouterConfig struct {
	QuizHandler  *handlers.QuizHandler
	Logger       logrus.FieldLogger
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = middleware.DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/quiz", cfg.QuizHandler.Create)
	// the original backend accepted quiz requests on the root path
	r.Post("/", cfg.QuizHandler.Create)

	return r
}
