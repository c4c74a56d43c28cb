package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "moneyocr.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper(), writeConfigFile(t, map[string]any{}))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Pipeline.TimeoutSec)
	assert.Equal(t, 2048, cfg.Pipeline.MaxImageDimension)
	assert.InDelta(t, 0.8, cfg.Pipeline.LowConfidenceThreshold, 1e-9)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.MaxUploadMB)
	assert.True(t, cfg.Batch.ContinueOnError)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"models_dir": "/opt/models",
		"log_level":  "debug",
		"pipeline": map[string]any{
			"timeout_sec":              7,
			"low_confidence_threshold": 0.5,
		},
		"server": map[string]any{"port": 9001},
	})

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/models", cfg.ModelsDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Pipeline.TimeoutSec)
	assert.InDelta(t, 0.5, cfg.Pipeline.LowConfidenceThreshold, 1e-9)
	assert.Equal(t, 9001, cfg.Server.Port)
	// Untouched keys keep defaults.
	assert.Equal(t, 2048, cfg.Pipeline.MaxImageDimension)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OCR_TIMEOUT_SEC", "9")
	t.Setenv("MAX_IMAGE_DIMENSION", "1024")
	t.Setenv("LOW_CONFIDENCE_THRESHOLD", "0.65")
	t.Setenv("MONEYOCR_MODELS_DIR", "/srv/models")

	cfg, err := Load(NewViper(), writeConfigFile(t, map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Pipeline.TimeoutSec)
	assert.Equal(t, 1024, cfg.Pipeline.MaxImageDimension)
	assert.InDelta(t, 0.65, cfg.Pipeline.LowConfidenceThreshold, 1e-9)
	assert.Equal(t, "/srv/models", cfg.ModelsDir)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero timeout", func(c *Config) { c.Pipeline.TimeoutSec = 0 }},
		{"negative dimension", func(c *Config) { c.Pipeline.MaxImageDimension = -1 }},
		{"threshold above one", func(c *Config) { c.Pipeline.LowConfidenceThreshold = 1.2 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero upload cap", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"unknown output format", func(c *Config) { c.Batch.OutputFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestToPipelineConfig(t *testing.T) {
	cfg := Default()
	cfg.ModelsDir = "/opt/models"
	cfg.Pipeline.TimeoutSec = 5
	cfg.Pipeline.NumThreads = 4
	cfg.Pipeline.Detector.BoxThresh = 0.7
	cfg.Pipeline.Recognizer.ImageHeight = 32

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, 5*time.Second, pc.Timeout)
	assert.Equal(t, 4, pc.Detector.NumThreads)
	assert.InDelta(t, 0.7, float64(pc.Detector.BoxThresh), 1e-6)
	assert.Equal(t, 32, pc.Recognizer.ImageHeight)
	assert.Contains(t, pc.Detector.ModelPath, "/opt/models")
	assert.Contains(t, pc.Recognizer.DictPath, "/opt/models")
}
