// Package api contains the HTTP handlers for the ingestion service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"n8n-ingest/backend/internal/auth"
	"n8n-ingest/backend/internal/render"
	"n8n-ingest/backend/internal/services"
	"n8n-ingest/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handler contains HTTP handlers for the ingestion REST API.
type Handler struct {
	runs      *services.RunRecorder
	approvals *services.ApprovalIngestor
	renderer  *render.Renderer
	logger    Logger
}

// NewHandler creates a new Handler with required dependencies.
func NewHandler(runs *services.RunRecorder, approvals *services.ApprovalIngestor, renderer *render.Renderer, logger Logger) *Handler {
	return &Handler{runs: runs, approvals: approvals, renderer: renderer, logger: logger}
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	OK bool `json:"ok"`
}

// HandleHealth reports liveness. It touches neither the database nor the
// browser.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{OK: true})
}

// bind decodes the request body into v. Decoding failures are reported as
// invalid payloads; an unsupported content type keeps its 415.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code == http.StatusUnsupportedMediaType {
				return err
			}
			if he.Internal != nil {
				err = he.Internal
			}
		}
		if errors.Is(err, models.ErrInvalidPayload) {
			return err
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidPayload, err)
	}
	return nil
}

// ProblemDetails represents an RFC 7807 Problem Details response.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// ErrorHandler returns an echo.HTTPErrorHandler that writes every error as
// Problem Details. Server-side failures are logged with their cause and
// reported to the client without it.
func ErrorHandler(logger Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		problem := classify(err)
		problem.Instance = c.Request().URL.Path

		if problem.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", problem.Status,
				"error", err,
			)
		}
		if problem.Status == http.StatusUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(problem.Status)
			return
		}
		writeProblem(c, problem)
	}
}

func classify(err error) ProblemDetails {
	p := ProblemDetails{Type: "about:blank"}
	var he *echo.HTTPError

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		p.Status = http.StatusUnauthorized
		p.Detail = detailOf(err, auth.ErrUnauthenticated)
	case errors.Is(err, services.ErrInvalidInput):
		p.Status = http.StatusBadRequest
		p.Detail = detailOf(err, services.ErrInvalidInput)
	case errors.Is(err, models.ErrInvalidPayload):
		p.Status = http.StatusUnprocessableEntity
		p.Detail = detailOf(err, models.ErrInvalidPayload)
	case errors.Is(err, render.ErrInvalidOptions):
		p.Status = http.StatusUnprocessableEntity
		p.Detail = detailOf(err, render.ErrInvalidOptions)
	case errors.Is(err, render.ErrRenderingUnavailable):
		p.Status = http.StatusInternalServerError
		p.Detail = "PDF rendering engine is unavailable"
	case errors.As(err, &he):
		p.Status = he.Code
		p.Detail = fmt.Sprint(he.Message)
	default:
		p.Status = http.StatusInternalServerError
		p.Detail = "internal server error"
	}

	p.Title = http.StatusText(p.Status)
	return p
}

// detailOf strips the sentinel's own text from a wrapped error message.
func detailOf(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

// writeProblem writes an RFC 7807 Problem Details JSON error response.
func writeProblem(c echo.Context, problem ProblemDetails) {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/problem+json")
	res.WriteHeader(problem.Status)
	_ = json.NewEncoder(res).Encode(problem)
}
