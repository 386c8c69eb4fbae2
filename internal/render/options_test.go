package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n8n-ingest/backend/pkg/models"
)

func TestWaitUntil_Normalize(t *testing.T) {
	cases := map[WaitUntil]Readiness{
		"networkidle0":     ReadyNetworkIdle,
		"networkidle2":     ReadyNetworkIdle,
		"networkidle":      ReadyNetworkIdle,
		"load":             ReadyLoad,
		"domcontentloaded": ReadyDOMContentLoaded,
		"commit":           ReadyCommit,
	}
	for in, want := range cases {
		got, ok := in.Normalize()
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := WaitUntil("idle").Normalize()
	assert.False(t, ok)
}

func TestRequest_DecodeDefaults(t *testing.T) {
	req := NewRequest()
	require.NoError(t, json.Unmarshal([]byte(`{"html":"<p>hi</p>"}`), &req))
	require.NoError(t, req.Validate())
	assert.Equal(t, DefaultOptions(), req.Options)

	req = NewRequest()
	require.NoError(t, json.Unmarshal([]byte(`{"html":"x","options":{"landscape":true,"format":"Letter"}}`), &req))
	require.NoError(t, req.Validate())
	assert.True(t, req.Options.Landscape)
	assert.Equal(t, Format("Letter"), req.Options.Format)
	assert.True(t, req.Options.PrintBackground)
	assert.Equal(t, "10mm", req.Options.MarginLeft)
	assert.Equal(t, WaitNetworkIdle0, req.Options.WaitUntil)
	assert.Equal(t, "document.pdf", req.Options.FileName)
}

func TestRequest_Validate(t *testing.T) {
	html := "<p>x</p>"
	cases := map[string]func(r *Request){
		"missing html":  func(r *Request) { r.HTML = nil },
		"bad format":    func(r *Request) { r.Options.Format = "B5" },
		"bad waitUntil": func(r *Request) { r.Options.WaitUntil = "idle" },
		"bad margin":    func(r *Request) { r.Options.MarginTop = "ten" },
		"negative":      func(r *Request) { r.Options.MarginLeft = "-1in" },
		"unknown unit":  func(r *Request) { r.Options.MarginRight = "1pt" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewRequest()
			r.HTML = &html
			mutate(&r)
			assert.ErrorIs(t, r.Validate(), models.ErrInvalidPayload)
		})
	}
}

func TestRequest_EmptyFileNameFallsBack(t *testing.T) {
	html := ""
	r := NewRequest()
	r.HTML = &html
	r.Options.FileName = ""
	require.NoError(t, r.Validate())
	assert.Equal(t, "document.pdf", r.Options.FileName)
}

func TestOptions_PageSettings(t *testing.T) {
	o := DefaultOptions()
	o.WaitUntil = WaitNetworkIdle2
	o.MarginTop = "0.5in"

	s := o.PageSettings()
	assert.Equal(t, ReadyNetworkIdle, s.WaitUntil)
	assert.Equal(t, "0.5in", s.Margins.Top)
	assert.Equal(t, Format("A4"), s.Format)
	assert.True(t, s.PrintBackground)
}

func TestLengthToInches(t *testing.T) {
	cases := map[string]float64{
		"":       0,
		"0":      0,
		"96px":   1,
		"96":     1,
		"1in":    1,
		"2.54cm": 37.8 * 2.54 / 96,
		"10mm":   37.8 / 96,
		" 1IN ":  1,
	}
	for in, want := range cases {
		got, err := LengthToInches(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	for _, bad := range []string{"abc", "1 inch", "-5px", "mm"} {
		_, err := LengthToInches(bad)
		assert.Error(t, err, bad)
	}
}
