package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/kvmap/internal/template"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 0.6, cfg.Align.KeyIoUThreshold)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"empty format", func(c *Config) { c.Output.Format = "" }, ""},
		{"threshold above one", func(c *Config) { c.Align.KeyIoUThreshold = 1.5 }, "key_iou_threshold"},
		{"zero radius", func(c *Config) { c.Align.ProximityRadius = 0 }, "proximity_radius"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"rate limit", func(c *Config) {
			c.Server.RateLimitEnabled = true
			c.Server.RequestsPerMin = 0
		}, "rate limiting"},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }, "batch workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTemplateFormat(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, template.FormatJSON, cfg.TemplateFormat())

	cfg.Output.Format = "yaml"
	assert.Equal(t, template.FormatYAML, cfg.TemplateFormat())

	cfg.Output.Compact = true
	assert.Equal(t, template.FormatJSONCompact, cfg.TemplateFormat())

	cfg.Output.Compact = false
	cfg.Output.Format = "csv"
	assert.Equal(t, template.FormatJSON, cfg.TemplateFormat())
}

func TestBatchSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.Workers = 7
	cfg.Batch.ContinueOnError = false
	cfg.Output.OverlayDir = "ov"

	bc := cfg.BatchSettings("i", "f", "c", "o")
	assert.Equal(t, "i", bc.ImageDir)
	assert.Equal(t, "f", bc.FineDir)
	assert.Equal(t, "c", bc.CoarseDir)
	assert.Equal(t, "o", bc.OutputDir)
	assert.Equal(t, 7, bc.Workers)
	assert.False(t, bc.ContinueOnError)
	assert.Equal(t, "ov", bc.OverlayDir)
	assert.NoError(t, bc.Validate())
}
