package render

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findChrome(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome binary on PATH")
	return ""
}

func TestChromeEngine_RenderPDF(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	engine := NewChromeEngine(ChromeConfig{
		ExecPath:  findChrome(t),
		NoSandbox: true,
		Timeout:   60 * time.Second,
	}, &NoOpLogger{})

	for _, ready := range []Readiness{ReadyCommit, ReadyDOMContentLoaded, ReadyLoad, ReadyNetworkIdle} {
		t.Run(string(ready), func(t *testing.T) {
			opts := DefaultOptions()
			s := opts.PageSettings()
			s.WaitUntil = ready

			pdf, err := engine.RenderPDF(context.Background(), "<html><body><h1>Hello</h1></body></html>", s)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
		})
	}
}

func TestChromeEngine_MissingBinaryIsUnavailable(t *testing.T) {
	engine := NewChromeEngine(ChromeConfig{
		ExecPath: "/nonexistent/chrome",
		Timeout:  10 * time.Second,
	}, &NoOpLogger{})

	_, err := engine.RenderPDF(context.Background(), "<p/>", DefaultOptions().PageSettings())
	assert.ErrorIs(t, err, ErrRenderingUnavailable)
}

func TestChromeEngine_RejectsBadSettingsBeforeLaunch(t *testing.T) {
	engine := NewChromeEngine(ChromeConfig{ExecPath: "/nonexistent/chrome"}, &NoOpLogger{})

	s := DefaultOptions().PageSettings()
	s.Format = "B5"
	_, err := engine.RenderPDF(context.Background(), "<p/>", s)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	s = DefaultOptions().PageSettings()
	s.Margins.Top = "lots"
	_, err = engine.RenderPDF(context.Background(), "<p/>", s)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
