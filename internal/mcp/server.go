// Package mcp exposes the ingestion operations as MCP tools so agents can
// report runs, raise approvals and render documents without going through
// n8n.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"n8n-ingest/backend/internal/auth"
	"n8n-ingest/backend/internal/render"
	"n8n-ingest/backend/internal/services"
	"n8n-ingest/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	runs      *services.RunRecorder
	approvals *services.ApprovalIngestor
	renderer  *render.Renderer
}

func NewServer(runs *services.RunRecorder, approvals *services.ApprovalIngestor, renderer *render.Renderer) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"n8n Node Ingestion",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		runs:      runs,
		approvals: approvals,
		renderer:  renderer,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"record_workflow_run",
			mcp.WithDescription("Record one execution of an n8n workflow"),
			mcp.WithString("workflow_name", mcp.Required(), mcp.Description("Name of the workflow")),
			mcp.WithString("status", mcp.Required(), mcp.Enum("success", "failed", "running"), mcp.Description("Run status")),
			mcp.WithString("started_at", mcp.Required(), mcp.Description("ISO-8601 start time")),
			mcp.WithString("ended_at", mcp.Description("ISO-8601 end time")),
			mcp.WithString("error_message", mcp.Description("Failure message")),
			mcp.WithString("external_run_id", mcp.Description("n8n execution id")),
			mcp.WithObject("metadata", mcp.Description("Arbitrary run metadata")),
		),
		s.handleRecordWorkflowRun,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_approval",
			mcp.WithDescription("Create a pending approval for a human to review"),
			mcp.WithString("type", mcp.Required(), mcp.Enum("order", "linkedin_post", "gmail_reply"), mcp.Description("Approval kind")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short title")),
			mcp.WithObject("preview", mcp.Required(), mcp.Description("What the reviewer sees")),
			mcp.WithObject("data", mcp.Required(), mcp.Description("Payload sent back to n8n on approval")),
			mcp.WithString("n8n_execute_webhook_url", mcp.Required(), mcp.Description("Webhook that resumes the workflow")),
			mcp.WithArray("assets", mcp.Description("Attached files, in display order")),
		),
		s.handleCreateApproval,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"render_pdf",
			mcp.WithDescription("Render an HTML document to PDF; returns base64"),
			mcp.WithString("html", mcp.Required(), mcp.Description("Complete HTML document")),
			mcp.WithObject("options", mcp.Description("Layout options: format, landscape, printBackground, margins, waitUntil, fileName")),
		),
		s.handleRenderPDF,
	)
}

// decodeArgs round-trips the tool arguments through JSON so the same payload
// types and validation as the REST API apply.
func decodeArgs(request mcp.CallToolRequest, v any) error {
	raw, err := json.Marshal(request.GetArguments())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func identity(ctx context.Context) (models.Identity, *mcp.CallToolResult) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return models.Identity{}, mcp.NewToolResultError("Unauthenticated: missing ingest token")
	}
	return id, nil
}

func (s *Server) handleRecordWorkflowRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, denied := identity(ctx)
	if denied != nil {
		return denied, nil
	}

	var payload models.WorkflowRunPayload
	if err := decodeArgs(request, &payload); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}

	result, err := s.runs.RecordRun(ctx, id, &payload)
	if err != nil {
		return toolError("Failed to record workflow run", err), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleCreateApproval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, denied := identity(ctx)
	if denied != nil {
		return denied, nil
	}

	var payload models.ApprovalIngestPayload
	if err := decodeArgs(request, &payload); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}

	result, err := s.approvals.CreateApproval(ctx, id, &payload)
	if err != nil {
		return toolError("Failed to create approval", err), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRenderPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, denied := identity(ctx)
	if denied != nil {
		return denied, nil
	}

	req := render.NewRequest()
	if err := decodeArgs(request, &req); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}

	result, err := s.renderer.Render(ctx, id, &req)
	if err != nil {
		return toolError("Failed to render PDF", err), nil
	}

	env := result.Envelope()
	return mcp.NewToolResultResource(
		fmt.Sprintf("Rendered %s (%d bytes)", env.FileName, env.Size),
		mcp.BlobResourceContents{
			URI:      "pdf://" + env.FileName,
			MIMEType: render.MimeTypePDF,
			Blob:     base64.StdEncoding.EncodeToString(result.PDF),
		},
	), nil
}

// toolError keeps validation messages and hides storage failures.
func toolError(prefix string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, models.ErrInvalidPayload),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, render.ErrInvalidOptions),
		errors.Is(err, render.ErrRenderingUnavailable):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
	}
	return mcp.NewToolResultError(prefix + ": internal error")
}

// MountHTTPHandlers returns a handler serving the streamable HTTP transport
// at /mcp and the SSE transport at /mcp/sse and /mcp/message. The caller's
// identity, placed on the request context by the auth middleware, is carried
// into tool calls.
func MountHTTPHandlers(mcpServer *server.MCPServer) http.Handler {
	carryIdentity := func(ctx context.Context, r *http.Request) context.Context {
		if id, ok := auth.FromContext(r.Context()); ok {
			return auth.WithIdentity(ctx, id)
		}
		return ctx
	}

	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(carryIdentity),
	)
	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(carryIdentity),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	mux.Handle("/mcp/sse", sseServer)
	mux.Handle("/mcp/message", sseServer)
	return mux
}
