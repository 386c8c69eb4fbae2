package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriters_FansOut(t *testing.T) {
	var text, js bytes.Buffer
	l := NewWithWriters(&text, &js, "info")

	l.Debug("hidden")
	l.Info("workflow run recorded", "org_id", "org-1", "workflow_run_id", 7)

	assert.NotContains(t, text.String(), "hidden")
	assert.Contains(t, text.String(), "workflow run recorded")
	assert.Contains(t, text.String(), "org_id=org-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &rec))
	assert.Equal(t, "workflow run recorded", rec["msg"])
	assert.Equal(t, "org-1", rec["org_id"])
	assert.Equal(t, float64(7), rec["workflow_run_id"])
}

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := New("debug", path)
	l.Debug("pdf rendered", "size", 1024)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, float64(1024), rec["size"])
}

func TestNew_UnwritableFileFallsBack(t *testing.T) {
	l := New("info", filepath.Join(t.TempDir(), "missing", "dir", "app.log"))
	require.NotNil(t, l)
	assert.NoError(t, l.Close())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
