package repository

import (
	"context"
	"errors"

	"n8n-ingest/backend/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// TokenStore resolves ingest tokens.
type TokenStore interface {
	// LookupActiveToken returns the active token matching the secret, or
	// ErrNotFound. Inactive and unknown tokens are indistinguishable.
	LookupActiveToken(ctx context.Context, token string) (*models.IngestToken, error)
}

// RunStore persists workflow executions.
type RunStore interface {
	// RecordWorkflowRun resolves (or creates) the workflow named workflowName
	// for run.OrgID and inserts the run. run.ID and run.WorkflowID are set on
	// success.
	RecordWorkflowRun(ctx context.Context, workflowName string, run *models.WorkflowRun) error
}

// ApprovalStore persists approvals with their assets and audit trail.
type ApprovalStore interface {
	// CreateApproval inserts the approval, then the assets in slice order, then
	// the event, in a single transaction.
	CreateApproval(ctx context.Context, approval *models.Approval, assets []models.ApprovalAsset, event *models.ApprovalEvent) error
}

// Repository is everything the HTTP server needs from the database.
type Repository interface {
	TokenStore
	RunStore
	ApprovalStore
	Ping(ctx context.Context) error
}
