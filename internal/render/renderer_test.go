package render

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n8n-ingest/backend/internal/telemetry"
	"n8n-ingest/backend/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

type fakeEngine struct {
	pdf   []byte
	err   error
	calls []PageSettings
	html  []string
}

func (f *fakeEngine) RenderPDF(ctx context.Context, html string, s PageSettings) ([]byte, error) {
	f.calls = append(f.calls, s)
	f.html = append(f.html, html)
	return f.pdf, f.err
}

var caller = models.Identity{OrgID: "org-1", TokenName: "n8n"}

func request(t *testing.T, html string, mutate func(o *Options)) *Request {
	t.Helper()
	r := NewRequest()
	r.HTML = &html
	if mutate != nil {
		mutate(&r.Options)
	}
	return &r
}

func TestRender_NetworkIdleSpellingsReachEngineIdentically(t *testing.T) {
	engine := &fakeEngine{pdf: []byte("%PDF-1.4")}
	metrics, err := telemetry.NewMetrics()
	require.NoError(t, err)
	r := NewRenderer(engine, metrics, &NoOpLogger{})

	for _, w := range []WaitUntil{WaitNetworkIdle2, WaitNetworkIdle, WaitNetworkIdle0} {
		_, err := r.Render(context.Background(), caller, request(t, "<p/>", func(o *Options) { o.WaitUntil = w }))
		require.NoError(t, err)
	}

	require.Len(t, engine.calls, 3)
	assert.Equal(t, engine.calls[0], engine.calls[1])
	assert.Equal(t, engine.calls[1], engine.calls[2])
	assert.Equal(t, ReadyNetworkIdle, engine.calls[0].WaitUntil)
}

func TestRender_ResultAndEnvelope(t *testing.T) {
	pdf := []byte("%PDF-1.7 body")
	engine := &fakeEngine{pdf: pdf}
	r := NewRenderer(engine, nil, &NoOpLogger{})

	res, err := r.Render(context.Background(), caller, request(t, "<h1>Invoice</h1>", func(o *Options) {
		o.FileName = "invoice.pdf"
		o.Landscape = true
	}))
	require.NoError(t, err)
	assert.Equal(t, pdf, res.PDF)
	assert.Equal(t, "invoice.pdf", res.FileName)
	assert.Equal(t, "<h1>Invoice</h1>", engine.html[0])
	assert.True(t, engine.calls[0].Landscape)

	env := res.Envelope()
	assert.True(t, env.OK)
	assert.Equal(t, "application/pdf", env.MimeType)
	assert.Equal(t, len(pdf), env.Size)
	decoded, err := base64.StdEncoding.DecodeString(env.Data)
	require.NoError(t, err)
	assert.Equal(t, pdf, decoded)
}

func TestRender_InvalidRequestNeverReachesEngine(t *testing.T) {
	engine := &fakeEngine{}
	r := NewRenderer(engine, nil, &NoOpLogger{})

	_, err := r.Render(context.Background(), caller, request(t, "x", func(o *Options) { o.Format = "Postcard" }))
	assert.ErrorIs(t, err, models.ErrInvalidPayload)

	missing := NewRequest()
	_, err = r.Render(context.Background(), caller, &missing)
	assert.ErrorIs(t, err, models.ErrInvalidPayload)

	assert.Empty(t, engine.calls)
}

func TestRender_EngineErrorPropagates(t *testing.T) {
	engine := &fakeEngine{err: errors.Join(ErrRenderingUnavailable, errors.New("exec: chrome not found"))}
	r := NewRenderer(engine, nil, &NoOpLogger{})

	_, err := r.Render(context.Background(), caller, request(t, "x", nil))
	assert.ErrorIs(t, err, ErrRenderingUnavailable)
}

func TestMarginsInInches(t *testing.T) {
	m, err := marginsInInches(Margins{Top: "1in", Right: "96px", Bottom: "", Left: "25.4mm"})
	require.NoError(t, err)
	assert.InDelta(t, 1, m.top, 1e-9)
	assert.InDelta(t, 1, m.right, 1e-9)
	assert.InDelta(t, 0, m.bottom, 1e-9)
	assert.InDelta(t, 25.4*3.78/96, m.left, 1e-9)

	_, err = marginsInInches(Margins{Top: "wide"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
