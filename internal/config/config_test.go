package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "models/mobilenetv2.onnx", cfg.Model.Path)
	assert.Equal(t, "models/imagenet_classes.json", cfg.Model.Labels)
	assert.Equal(t, "assets/test_image.jpg", cfg.Sample.Path)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, int64(20<<20), cfg.Fetch.MaxBytes)
	assert.Equal(t, int64(40_000_000), cfg.Fetch.MaxPixels)
	assert.False(t, cfg.Fetch.AllowPrivate)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  path: /srv/models/mobilenet.onnx
  labels: /srv/models/labels.json
fetch:
  timeout: 5s
log:
  level: debug
  format: json
top_k: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/models/mobilenet.onnx", cfg.Model.Path)
	assert.Equal(t, "/srv/models/labels.json", cfg.Model.Labels)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, "assets/test_image.jpg", cfg.Sample.Path)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("IMAGENET_MODEL_PATH", "/env/model.onnx")
	t.Setenv("PORT", "9090")
	t.Setenv("IMAGENET_FETCH_MAX_PIXELS", "1000000")
	t.Setenv("IMAGENET_FETCH_ALLOW_PRIVATE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/model.onnx", cfg.Model.Path)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, int64(1_000_000), cfg.Fetch.MaxPixels)
	assert.True(t, cfg.Fetch.AllowPrivate)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{TopK: 0}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.path is required")
	assert.Contains(t, err.Error(), "top_k must be positive")
	assert.Contains(t, err.Error(), "fetch.max_pixels must be positive")
}
