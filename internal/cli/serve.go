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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"n8n-ingest/backend/internal/api"
	"n8n-ingest/backend/internal/auth"
	"n8n-ingest/backend/internal/config"
	"n8n-ingest/backend/internal/logging"
	"n8n-ingest/backend/internal/mcp"
	"n8n-ingest/backend/internal/render"
	"n8n-ingest/backend/internal/repository"
	"n8n-ingest/backend/internal/services"
	"n8n-ingest/backend/internal/telemetry"
	"n8n-ingest/backend/internal/tls"
)

type serveOptions struct {
	migrate bool
}

func (o *serveOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.migrate, "migrate", false, "Apply pending migrations before serving")
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	serve := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, serve)
		},
	}
	serve.bindFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions, serve *serveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(opts.envFile)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.File)
	defer logger.Close()

	logger.Info("Configuration loaded",
		"addr", cfg.Server.Addr,
		"cors_origins", cfg.CORS.Origins,
		"tls", cfg.TLS.Enable,
		"render_timeout", cfg.Render.Timeout,
	)

	if serve.migrate {
		if err := repository.Migrate(cfg.DB.URL); err != nil {
			return err
		}
		logger.Info("Migrations applied")
	}

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	defer dbPool.Close()

	var store repository.Repository = repository.NewPostgresStore(dbPool)
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("database initialization failed: failed to ping database: %w", err)
	}
	logger.Info("Database connected")

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	runs := services.NewRunRecorder(store, metrics, logger)
	approvals := services.NewApprovalIngestor(store, metrics, logger)
	engine := render.NewChromeEngine(render.ChromeConfig{
		ExecPath:  cfg.Render.ChromePath,
		NoSandbox: cfg.Render.NoSandbox,
		Timeout:   cfg.Render.Timeout,
	}, logger)
	renderer := render.NewRenderer(engine, metrics, logger)
	logger.Info("Service layer initialized")

	authz := auth.New(store, logger)
	handler := api.NewHandler(runs, approvals, renderer, logger)
	mcpServer := mcp.NewServer(runs, approvals, renderer)
	e := api.NewServer(cfg, handler, authz, mcp.MountHTTPHandlers(mcpServer.GetMCPServer()), logger)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           e,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.TLS.Enable {
		generated, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return err
		}
		if generated {
			logger.Info("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return pool, nil
}
