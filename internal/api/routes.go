package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"n8n-ingest/backend/internal/auth"
	"n8n-ingest/backend/internal/config"
)

// NewServer builds the echo instance with middleware and every route
// mounted. mcpHandler may be nil.
func NewServer(cfg *config.Config, h *Handler, authz *auth.Auth, mcpHandler http.Handler, logger Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(cfg.App.Name))
	e.Use(requestLogger(logger))
	e.Use(middleware.CORSWithConfig(corsConfig(cfg)))
	if cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}

	e.GET("/health", h.HandleHealth)
	e.GET("/openapi.yaml", SpecHandler)
	e.GET("/docs", SwaggerHandler(cfg.App.Name))

	ingest := e.Group("/ingest", authz.RequireAuth)
	ingest.POST("/workflow-run", h.RecordWorkflowRun)
	ingest.POST("/approval", h.CreateApproval)

	renderGroup := e.Group("/render", authz.RequireAuth)
	renderGroup.POST("/pdf", h.RenderPDF)

	if mcpHandler != nil {
		wrapped := echo.WrapHandler(mcpHandler)
		e.Any("/mcp", wrapped, authz.RequireAuth)
		e.Any("/mcp/*", wrapped, authz.RequireAuth)
	}

	return e
}

// corsConfig allows every method and reflects requested headers. The
// wildcard policy also allows credentials, so echo echoes the caller's
// Origin back instead of sending "*".
func corsConfig(cfg *config.Config) middleware.CORSConfig {
	c := middleware.CORSConfig{
		AllowOrigins: cfg.CORS.Origins,
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch,
			http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowCredentials: true,
	}
	switch {
	case cfg.AllowsAnyOrigin():
		c.AllowOrigins = []string{"*"}
		c.UnsafeWildcardOriginWithAllowCredentials = true
	case len(cfg.CORS.Origins) == 0:
		// echo treats an empty list as "*"
		c.AllowOriginFunc = func(string) (bool, error) { return false, nil }
	}
	return c
}

func requestLogger(logger Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				args = append(args, "error", v.Error.Error())
			}
			logger.Info("request", args...)
			return nil
		},
	})
}
