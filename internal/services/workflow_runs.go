package services

import (
	"context"
	"fmt"
	"strings"

	"n8n-ingest/backend/internal/repository"
	"n8n-ingest/backend/internal/telemetry"
	"n8n-ingest/backend/pkg/models"
)

// RunRecorder stores workflow executions reported by n8n.
type RunRecorder struct {
	store   repository.RunStore
	metrics *telemetry.Metrics
	logger  Logger
}

// NewRunRecorder creates a new RunRecorder. metrics may be nil.
func NewRunRecorder(store repository.RunStore, metrics *telemetry.Metrics, logger Logger) *RunRecorder {
	return &RunRecorder{store: store, metrics: metrics, logger: logger}
}

// RunResult is returned to the caller after a run is stored.
type RunResult struct {
	OK            bool   `json:"ok"`
	WorkflowRunID int64  `json:"workflow_run_id"`
	WorkflowID    string `json:"workflow_id"`
	Message       string `json:"message"`
}

// RecordRun validates the payload and stores the run under the caller's
// organization, creating the workflow on its first report.
func (r *RunRecorder) RecordRun(ctx context.Context, id models.Identity, p *models.WorkflowRunPayload) (*RunResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	status := models.RunStatus(p.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status must be one of: %s", ErrInvalidInput, joinStatuses())
	}

	run := &models.WorkflowRun{
		OrgID:         id.OrgID,
		StartedAt:     p.StartedAt.Time,
		Status:        status,
		ErrorMessage:  p.ErrorMessage,
		ExternalRunID: p.ExternalRunID,
		Payload:       p.Metadata,
	}
	if p.EndedAt != nil {
		ended := p.EndedAt.Time
		run.EndedAt = &ended
	}
	run.DurationMs = models.RunDuration(run.StartedAt, run.EndedAt)

	if err := r.store.RecordWorkflowRun(ctx, p.WorkflowName, run); err != nil {
		r.logger.Error("failed to record workflow run", "org_id", id.OrgID, "workflow", p.WorkflowName, "error", err)
		return nil, err
	}

	r.metrics.WorkflowRunRecorded(ctx, id.OrgID, p.Status)
	r.logger.Info("workflow run recorded",
		"org_id", id.OrgID,
		"workflow_id", run.WorkflowID,
		"workflow_run_id", run.ID,
		"status", p.Status,
	)

	return &RunResult{
		OK:            true,
		WorkflowRunID: run.ID,
		WorkflowID:    run.WorkflowID,
		Message:       fmt.Sprintf("Workflow run recorded successfully for '%s'", p.WorkflowName),
	}, nil
}

func joinStatuses() string {
	names := make([]string, len(models.RunStatuses))
	for i, s := range models.RunStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
