package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/palantir/product-attribute-enrichment/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ENRICHER_GEMINI_API_KEY", "")

	cfg, err := config.Load(config.New(""))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.SearchModel)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.ExtractionModel)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 0, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.RequestTimeout)
	assert.Equal(t, 20*time.Second, cfg.Pipeline.ImageTimeout)
	assert.EqualValues(t, 20<<20, cfg.Pipeline.MaxImageBytes)
	assert.Equal(t, "enricher.db", cfg.Store.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Error(t, cfg.RequireGemini())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENRICHER_PIPELINE_WORKERS", "8")
	t.Setenv("ENRICHER_PIPELINE_REQUEST_TIMEOUT", "15s")
	t.Setenv("GEMINI_API_KEY", " secret ")

	cfg, err := config.Load(config.New(""))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.RequestTimeout)
	assert.Equal(t, "secret", cfg.Gemini.APIKey)
	assert.NoError(t, cfg.RequireGemini())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ENRICHER_GEMINI_API_KEY", "")
	body := "gemini:\n  api_key: from-file\n  capture_audit: true\nstore:\n  path: /tmp/products.db\nlog:\n  format: console\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enricher.yaml"), []byte(body), 0o600))

	cfg, err := config.Load(config.New(""))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Gemini.APIKey)
	assert.True(t, cfg.Gemini.CaptureAudit)
	assert.Equal(t, "/tmp/products.db", cfg.Store.Path)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero workers", env: map[string]string{"ENRICHER_PIPELINE_WORKERS": "0"}},
		{name: "negative retries", env: map[string]string{"ENRICHER_PIPELINE_MAX_RETRIES": "-1"}},
		{name: "bad log format", env: map[string]string{"ENRICHER_LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(config.New(""))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(config.New(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}
