package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/kvmap/internal/align"
	"github.com/MeKo-Tech/kvmap/internal/batch"
	"github.com/MeKo-Tech/kvmap/internal/overlay"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

// Config represents the complete configuration for kvmap. It covers every
// command (map, batch, serve) and is loaded from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Alignment thresholds
	Align align.Config `mapstructure:"align" yaml:"align" json:"align"`

	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Batch  BatchConfig  `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format            string `mapstructure:"format" yaml:"format" json:"format"`
	File              string `mapstructure:"file" yaml:"file" json:"file"`
	Compact           bool   `mapstructure:"compact" yaml:"compact" json:"compact"`
	OverlayDir        string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayKeyColor   string `mapstructure:"overlay_key_color" yaml:"overlay_key_color" json:"overlay_key_color"`
	OverlayValueColor string `mapstructure:"overlay_value_color" yaml:"overlay_value_color" json:"overlay_value_color"`
	OverlayEtcColor   string `mapstructure:"overlay_etc_color" yaml:"overlay_etc_color" json:"overlay_etc_color"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string `mapstructure:"host" yaml:"host" json:"host"`
	Port             int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin       string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB      int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec       int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout  int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	WatchConfig      bool   `mapstructure:"watch_config" yaml:"watch_config" json:"watch_config"`
	RateLimitEnabled bool   `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMin   int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour  int    `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsDay   int    `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB  int    `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Overwrite       bool `mapstructure:"overwrite" yaml:"overwrite" json:"overwrite"`
}

// Output formats accepted by the map command.
var validFormats = []string{"json", "yaml", "text", "csv"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	bd := batch.DefaultConfig()
	return Config{
		LogLevel: "info",
		Align:    align.DefaultConfig(),
		Output: OutputConfig{
			Format:            "json",
			OverlayKeyColor:   "#FF0000",
			OverlayValueColor: "#0000FF",
			OverlayEtcColor:   "#00FF00",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RequestsPerMin:  60,
			RequestsPerHour: 1000,
			MaxRequestsDay:  5000,
			MaxDataPerDayMB: 500,
		},
		Batch: BatchConfig{
			Workers:         bd.Workers,
			ContinueOnError: bd.ContinueOnError,
			Overwrite:       bd.Overwrite,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if err := c.Align.Validate(); err != nil {
		return fmt.Errorf("invalid align settings: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimitEnabled && (c.Server.RequestsPerMin <= 0 || c.Server.RequestsPerHour <= 0) {
		return errors.New("rate limiting requires positive requests_per_minute and requests_per_hour")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// Colors returns the overlay colors.
func (c *Config) Colors() overlay.Colors {
	return overlay.ColorsFromHex(c.Output.OverlayKeyColor, c.Output.OverlayValueColor, c.Output.OverlayEtcColor)
}

// TemplateFormat maps the output settings to a template encoding. Text and
// csv are rendered by the CLI, so they fall back to JSON for files.
func (c *Config) TemplateFormat() template.Format {
	switch {
	case c.Output.Compact:
		return template.FormatJSONCompact
	case c.Output.Format == "yaml":
		return template.FormatYAML
	default:
		return template.FormatJSON
	}
}

// BatchSettings derives the batch configuration for the given folders.
func (c *Config) BatchSettings(imageDir, fineDir, coarseDir, outputDir string) batch.Config {
	bc := batch.DefaultConfig()
	bc.ImageDir = imageDir
	bc.FineDir = fineDir
	bc.CoarseDir = coarseDir
	bc.OutputDir = outputDir
	bc.Workers = c.Batch.Workers
	bc.ContinueOnError = c.Batch.ContinueOnError
	bc.Overwrite = c.Batch.Overwrite
	bc.OutputFormat = c.TemplateFormat()
	bc.OverlayDir = c.Output.OverlayDir
	bc.Colors = c.Colors()
	return bc
}

// Timeout returns the request timeout.
func (s ServerConfig) Timeout() time.Duration { return time.Duration(s.TimeoutSec) * time.Second }
