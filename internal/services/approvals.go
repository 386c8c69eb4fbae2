package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"n8n-ingest/backend/internal/repository"
	"n8n-ingest/backend/internal/telemetry"
	"n8n-ingest/backend/pkg/models"
)

// ApprovalIngestor creates pending approvals with their assets and a
// "created" audit event.
type ApprovalIngestor struct {
	store   repository.ApprovalStore
	metrics *telemetry.Metrics
	logger  Logger
	newID   func() string
}

// NewApprovalIngestor creates a new ApprovalIngestor. metrics may be nil.
func NewApprovalIngestor(store repository.ApprovalStore, metrics *telemetry.Metrics, logger Logger) *ApprovalIngestor {
	return &ApprovalIngestor{
		store:   store,
		metrics: metrics,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// ApprovalResult is returned to the caller after an approval is stored.
type ApprovalResult struct {
	OK         bool   `json:"ok"`
	ApprovalID string `json:"approval_id"`
	Message    string `json:"message"`
}

// CreateApproval validates the payload and writes the approval, its assets in
// input order and one "created" event as a single unit.
func (a *ApprovalIngestor) CreateApproval(ctx context.Context, id models.Identity, p *models.ApprovalIngestPayload) (*ApprovalResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	approvalType := models.ApprovalType(p.Type)
	if !approvalType.Valid() {
		return nil, fmt.Errorf("%w: type must be one of: order, linkedin_post, gmail_reply", ErrInvalidInput)
	}
	for i, asset := range p.Assets {
		if !models.StorageProvider(asset.StorageProvider).Valid() {
			return nil, fmt.Errorf("%w: assets[%d].storage_provider must be one of: minio, s3, external, local", ErrInvalidInput, i)
		}
	}

	approval := &models.Approval{
		ID:                   a.newID(),
		OrgID:                id.OrgID,
		Type:                 approvalType,
		Status:               models.ApprovalStatusPending,
		Title:                p.Title,
		Preview:              p.Preview,
		Data:                 p.Data,
		N8NExecuteWebhookURL: p.N8NExecuteWebhookURL,
	}

	assets := make([]models.ApprovalAsset, len(p.Assets))
	for i, in := range p.Assets {
		assets[i] = models.ApprovalAsset{
			ID:              a.newID(),
			ApprovalID:      approval.ID,
			Position:        i,
			Role:            in.Role,
			StorageProvider: models.StorageProvider(in.StorageProvider),
			StorageKey:      in.StorageKey,
			ExternalURL:     in.ExternalURL,
			Filename:        in.Filename,
			MimeType:        in.MimeType,
			SizeBytes:       in.SizeBytes,
		}
	}

	metadata, err := json.Marshal(map[string]any{
		"type":        p.Type,
		"asset_count": len(assets),
		"token_name":  id.TokenName,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event metadata: %w", err)
	}
	event := &models.ApprovalEvent{
		ID:         a.newID(),
		ApprovalID: approval.ID,
		Event:      models.ApprovalEventCreated,
		Metadata:   models.Document(metadata),
	}

	if err := a.store.CreateApproval(ctx, approval, assets, event); err != nil {
		a.logger.Error("failed to create approval", "org_id", id.OrgID, "type", p.Type, "error", err)
		return nil, err
	}

	a.metrics.ApprovalCreated(ctx, id.OrgID, p.Type, len(assets))
	a.logger.Info("approval created",
		"org_id", id.OrgID,
		"approval_id", approval.ID,
		"type", p.Type,
		"asset_count", len(assets),
	)

	return &ApprovalResult{
		OK:         true,
		ApprovalID: approval.ID,
		Message:    fmt.Sprintf("Approval '%s' created successfully", p.Title),
	}, nil
}
