// Package telemetry holds the OpenTelemetry instruments shared by the
// ingestion and rendering paths. Instruments are created from the global
// providers, so they are no-ops until an SDK is installed.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope for every meter and tracer here.
const ScopeName = "n8n-ingest/backend"

// Metrics groups the counters and histograms recorded by the services.
type Metrics struct {
	workflowRuns   metric.Int64Counter
	approvals      metric.Int64Counter
	renders        metric.Int64Counter
	renderDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(ScopeName)

	workflowRuns, err := meter.Int64Counter("ingest.workflow_runs",
		metric.WithDescription("Workflow runs recorded"))
	if err != nil {
		return nil, err
	}
	approvals, err := meter.Int64Counter("ingest.approvals",
		metric.WithDescription("Approvals ingested"))
	if err != nil {
		return nil, err
	}
	renders, err := meter.Int64Counter("render.pdf",
		metric.WithDescription("PDF render attempts"))
	if err != nil {
		return nil, err
	}
	renderDuration, err := meter.Float64Histogram("render.pdf.duration",
		metric.WithDescription("PDF render wall time"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		workflowRuns:   workflowRuns,
		approvals:      approvals,
		renders:        renders,
		renderDuration: renderDuration,
	}, nil
}

// Tracer returns the package tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}

// WorkflowRunRecorded counts one stored run.
func (m *Metrics) WorkflowRunRecorded(ctx context.Context, orgID, status string) {
	if m == nil {
		return
	}
	m.workflowRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("status", status),
	))
}

// ApprovalCreated counts one stored approval.
func (m *Metrics) ApprovalCreated(ctx context.Context, orgID, approvalType string, assets int) {
	if m == nil {
		return
	}
	m.approvals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("type", approvalType),
		attribute.Int("asset_count", assets),
	))
}

// PDFRendered records a render attempt and how long it took.
func (m *Metrics) PDFRendered(ctx context.Context, orgID string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.Bool("error", err != nil),
	)
	m.renders.Add(ctx, 1, attrs)
	m.renderDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}
