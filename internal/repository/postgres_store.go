package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"n8n-ingest/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of Repository.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// LookupActiveToken returns the active token matching the secret.
func (s *PostgresStore) LookupActiveToken(ctx context.Context, token string) (*models.IngestToken, error) {
	t := models.IngestToken{Token: token, IsActive: true}
	err := s.db.QueryRow(ctx,
		`SELECT org_id::text, name, created_at FROM ingest_tokens WHERE token = $1 AND is_active = TRUE`,
		token,
	).Scan(&t.OrgID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup ingest token: %w", err)
	}
	return &t, nil
}

// CreateToken inserts a new ingest token. Used by the seed command only; the
// request path never writes tokens.
func (s *PostgresStore) CreateToken(ctx context.Context, t *models.IngestToken) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO ingest_tokens (token, org_id, name, is_active) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		t.Token, t.OrgID, t.Name, t.IsActive,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ingest token: %w", err)
	}
	return nil
}

// upsertWorkflowSQL returns the id of the (org_id, name) workflow, creating it
// if needed. The no-op DO UPDATE makes RETURNING yield the existing row, so
// concurrent first reports of a name converge on one id.
const upsertWorkflowSQL = `
	INSERT INTO workflows (org_id, name, active)
	VALUES ($1, $2, TRUE)
	ON CONFLICT (org_id, name) DO UPDATE SET name = EXCLUDED.name
	RETURNING id::text`

const insertRunSQL = `
	INSERT INTO workflow_runs (
		org_id, workflow_id, started_at, ended_at, status,
		duration_ms, error_message, external_run_id, payload
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id`

// RecordWorkflowRun upserts the workflow and inserts the run in one transaction.
func (s *PostgresStore) RecordWorkflowRun(ctx context.Context, workflowName string, run *models.WorkflowRun) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var workflowID string
		if err := tx.QueryRow(ctx, upsertWorkflowSQL, run.OrgID, workflowName).Scan(&workflowID); err != nil {
			return fmt.Errorf("upsert workflow %q: %w", workflowName, err)
		}

		var runID int64
		err := tx.QueryRow(ctx, insertRunSQL,
			run.OrgID,
			workflowID,
			run.StartedAt,
			run.EndedAt,
			string(run.Status),
			run.DurationMs,
			run.ErrorMessage,
			run.ExternalRunID,
			run.Payload.Raw(),
		).Scan(&runID)
		if err != nil {
			return fmt.Errorf("insert workflow run: %w", err)
		}

		run.ID = runID
		run.WorkflowID = workflowID
		return nil
	})
}

const insertApprovalSQL = `
	INSERT INTO approvals (id, org_id, type, status, title, preview, data, n8n_execute_webhook_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertAssetSQL = `
	INSERT INTO approval_assets (
		id, approval_id, position, role, storage_provider,
		storage_key, external_url, filename, mime_type, size_bytes
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertEventSQL = `
	INSERT INTO approval_events (id, approval_id, event, metadata)
	VALUES ($1, $2, $3, $4)`

// CreateApproval writes the approval, its assets and its event atomically.
// Assets are sent as one batch inside the transaction; the batch preserves
// queue order.
func (s *PostgresStore) CreateApproval(ctx context.Context, approval *models.Approval, assets []models.ApprovalAsset, event *models.ApprovalEvent) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertApprovalSQL,
			approval.ID,
			approval.OrgID,
			string(approval.Type),
			approval.Status,
			approval.Title,
			approval.Preview.Raw(),
			approval.Data.Raw(),
			approval.N8NExecuteWebhookURL,
		)
		if err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}

		if len(assets) > 0 {
			batch := &pgx.Batch{}
			for _, a := range assets {
				batch.Queue(insertAssetSQL,
					a.ID,
					a.ApprovalID,
					a.Position,
					a.Role,
					string(a.StorageProvider),
					a.StorageKey,
					a.ExternalURL,
					a.Filename,
					a.MimeType,
					a.SizeBytes,
				)
			}
			br := tx.SendBatch(ctx, batch)
			for i := range assets {
				if _, err := br.Exec(); err != nil {
					_ = br.Close()
					return fmt.Errorf("insert approval asset %d: %w", i, err)
				}
			}
			if err := br.Close(); err != nil {
				return fmt.Errorf("insert approval assets: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, insertEventSQL, event.ID, event.ApprovalID, event.Event, event.Metadata.Raw()); err != nil {
			return fmt.Errorf("insert approval event: %w", err)
		}
		return nil
	})
}
