package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"n8n-ingest/backend/internal/auth"
	"n8n-ingest/backend/pkg/models"
)

// RecordWorkflowRun stores one workflow execution reported by n8n.
// (POST /ingest/workflow-run)
func (h *Handler) RecordWorkflowRun(c echo.Context) error {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	var payload models.WorkflowRunPayload
	if err := bind(c, &payload); err != nil {
		return err
	}

	result, err := h.runs.RecordRun(c.Request().Context(), id, &payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// CreateApproval stores a pending approval with its assets.
// (POST /ingest/approval)
func (h *Handler) CreateApproval(c echo.Context) error {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return auth.ErrUnauthenticated
	}

	var payload models.ApprovalIngestPayload
	if err := bind(c, &payload); err != nil {
		return err
	}

	result, err := h.approvals.CreateApproval(c.Request().Context(), id, &payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
