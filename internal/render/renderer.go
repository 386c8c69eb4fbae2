package render

import (
	"context"
	"encoding/base64"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"n8n-ingest/backend/internal/telemetry"
	"n8n-ingest/backend/pkg/models"
)

// Renderer validates render requests and hands them to an Engine.
type Renderer struct {
	engine  Engine
	metrics *telemetry.Metrics
	logger  Logger
}

// NewRenderer creates a new Renderer. metrics may be nil.
func NewRenderer(engine Engine, metrics *telemetry.Metrics, logger Logger) *Renderer {
	return &Renderer{engine: engine, metrics: metrics, logger: logger}
}

// Result is a rendered document.
type Result struct {
	PDF      []byte
	FileName string
}

// Envelope is the JSON form of a Result.
type Envelope struct {
	OK       bool   `json:"ok"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
	Size     int    `json:"size"`
}

// Envelope encodes the PDF as base64. Size is the decoded byte count.
func (r *Result) Envelope() Envelope {
	return Envelope{
		OK:       true,
		FileName: r.FileName,
		MimeType: MimeTypePDF,
		Data:     base64.StdEncoding.EncodeToString(r.PDF),
		Size:     len(r.PDF),
	}
}

// Render renders req for the caller identified by id. The identity is only
// used for logging and metrics; renders are not scoped to an organization.
func (r *Renderer) Render(ctx context.Context, id models.Identity, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	settings := req.Options.PageSettings()

	ctx, span := telemetry.Tracer().Start(ctx, "render.pdf", trace.WithAttributes(
		attribute.String("org_id", id.OrgID),
		attribute.String("format", string(settings.Format)),
		attribute.String("wait_until", string(settings.WaitUntil)),
	))
	defer span.End()

	start := time.Now()
	pdf, err := r.engine.RenderPDF(ctx, *req.HTML, settings)
	elapsed := time.Since(start)
	r.metrics.PDFRendered(ctx, id.OrgID, elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("pdf render failed", "org_id", id.OrgID, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("size", len(pdf)))
	r.logger.Info("pdf rendered",
		"org_id", id.OrgID,
		"file_name", req.Options.FileName,
		"size", len(pdf),
		"duration_ms", elapsed.Milliseconds(),
	)
	return &Result{PDF: pdf, FileName: req.Options.FileName}, nil
}
