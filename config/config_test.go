package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:7280", cfg.Server.Addr())
	assert.Equal(t, 0.2, cfg.Server.ConfThreshold)
	assert.Equal(t, time.Second/60, cfg.Server.FPSDelay())
	assert.Equal(t, "dataset/classes.txt", cfg.Server.ClassesFile)
	assert.Equal(t, 8192, cfg.Server.MaxDisplaySide)
	assert.Equal(t, 5, cfg.Augment.PerImage)
	assert.Equal(t, 320, cfg.Annotate.Size)
	require.Len(t, cfg.Annotate.Models, 3)
	assert.Equal(t, "_1n", cfg.Annotate.Models[0].Suffix)
}

func TestReadOverlaysDefaults(t *testing.T) {
	doc := `
server:
  port: 9000
  conf_threshold: 0.35
detector:
  backend: remote
  remote_url: http://127.0.0.1:7280/detect
  timeout: 2s
annotate:
  models:
    - name: custom
      path: models/custom.onnx
      suffix: _c
`
	cfg, err := Read(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 0.35, cfg.Server.ConfThreshold)
	assert.Equal(t, 60, cfg.Server.FPSCap)
	assert.Equal(t, BackendRemote, cfg.Detector.Backend)
	assert.Equal(t, 2*time.Second, cfg.Detector.Timeout)
	assert.Equal(t, []ModelVariant{{Name: "custom", Path: "models/custom.onnx", Suffix: "_c"}}, cfg.Annotate.Models)
}

func TestReadEmpty(t *testing.T) {
	cfg, err := Read(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestReadRejectsUnknownKeys(t *testing.T) {
	_, err := Read(strings.NewReader("server:\n  prot: 1\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "conf threshold", mutate: func(c *Config) { c.Server.ConfThreshold = 1.5 }},
		{name: "fps cap", mutate: func(c *Config) { c.Server.FPSCap = 0 }},
		{name: "max display side", mutate: func(c *Config) { c.Server.MaxDisplaySide = 0 }},
		{name: "backend", mutate: func(c *Config) { c.Detector.Backend = "tflite" }},
		{name: "remote without url", mutate: func(c *Config) { c.Detector.Backend = BackendRemote }},
		{name: "model path", mutate: func(c *Config) { c.Detector.ModelPath = "" }},
		{name: "provider", mutate: func(c *Config) { c.Detector.ExecutionProvider = "tpu" }},
		{name: "input size", mutate: func(c *Config) { c.Detector.InputSize = 600 }},
		{name: "nms threshold", mutate: func(c *Config) { c.Detector.NMSThreshold = -0.1 }},
		{name: "per image", mutate: func(c *Config) { c.Augment.PerImage = 0 }},
		{name: "annotate size", mutate: func(c *Config) { c.Annotate.Size = -1 }},
		{name: "model variant path", mutate: func(c *Config) { c.Annotate.Models[1].Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Augment.Seed = 42
	raw, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
