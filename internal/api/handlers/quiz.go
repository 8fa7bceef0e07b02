package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/ownership-validator/internal/api"
	"github.com/cloo-solutions/ownership-validator/internal/config"
	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/cloo-solutions/ownership-validator/internal/logging"
	"github.com/cloo-solutions/ownership-validator/internal/quiz"
	"github.com/cloo-solutions/ownership-validator/internal/telemetry"
)

type QuizService interface {
	Generate(ctx context.Context, target string, overrides config.Overrides) (*quiz.Result, error)
}

type QuizHandler struct {
	svc  QuizService
	root string
	// realRoot is root with symlinks resolved.
	realRoot string
}

// NewQuizHandler serves quizzes for files under root.
func NewQuizHandler(svc QuizService, root string) (*QuizHandler, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, domain.ConfigurationError(fmt.Sprintf("invalid workspace root %q: %v", root, err))
	}
	return &QuizHandler{svc: svc, root: abs, realRoot: realPath(abs)}, nil
}

type QuizRequest struct {
	FilePath  string `json:"file_path"`
	UserName  string `json:"user_name"`
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key"`
}

type QuizResponse struct {
	FilePath string            `json:"file_path"`
	UserName string            `json:"user_name"`
	Model    string            `json:"model"`
	Quiz     string            `json:"quiz"`
	Report   domain.QuizReport `json:"report"`
}

func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req QuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.FilePath) == "" {
		api.Error(w, http.StatusBadRequest, "file_path is required")
		return
	}

	target, err := h.resolve(req.FilePath)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	log := logging.WithContext(r.Context()).WithField("user_name", req.UserName)
	log.WithField("target", target).Info("generating quiz")

	res, err := h.svc.Generate(r.Context(), target, config.Overrides{
		Model:  req.ModelName,
		APIKey: req.APIKey,
	})
	if err != nil {
		log.WithError(err).Warn("quiz generation failed")
		if status := api.DomainErrorToHTTP(err); status >= http.StatusInternalServerError {
			telemetry.CaptureError(r.Context(), err)
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, QuizResponse{
		FilePath: req.FilePath,
		UserName: req.UserName,
		Model:    res.Model,
		Quiz:     string(res.Response),
		Report:   res.Report,
	})
}

// resolve maps a request path into the workspace root. Relative paths are
// taken from the root; nothing may escape it, including through symlinks.
func (h *QuizHandler) resolve(p string) (string, error) {
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(h.root, target)
	}
	target = filepath.Clean(target)

	lexical := within(h.root, target) || within(h.realRoot, target)
	if !lexical || !within(h.realRoot, realPath(target)) {
		return "", domain.InputError(domain.ErrCodeInvalidInput,
			fmt.Sprintf("path %s is outside the workspace", p), nil)
	}
	return target, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// realPath resolves symlinks in the longest existing prefix of path and
// appends the remainder unchanged.
func realPath(path string) string {
	var rest []string
	for dir := path; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		rest = append(rest, filepath.Base(dir))
	}
}
