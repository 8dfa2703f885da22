package batch

import (
	"errors"
	"time"

	"github.com/MeKo-Tech/kvmap/internal/overlay"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

// Config holds all configuration for folder-based batch alignment.
type Config struct {
	// Folder layout. OCR files are looked up as <base>.json next to each image.
	ImageDir  string
	FineDir   string
	CoarseDir string
	OutputDir string

	// Output settings
	OutputFormat template.Format
	OverlayDir   string
	Colors       overlay.Colors
	Overwrite    bool

	// File discovery settings
	IncludePatterns []string
	ExcludePatterns []string

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
}

// DefaultConfig returns defaults for the optional settings.
func DefaultConfig() Config {
	return Config{
		OutputFormat:     template.FormatJSON,
		Colors:           overlay.DefaultColors(),
		Overwrite:        true,
		Workers:          4,
		ContinueOnError:  true,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the folder settings.
func (c *Config) Validate() error {
	switch {
	case c.ImageDir == "":
		return errors.New("image folder is required")
	case c.FineDir == "":
		return errors.New("fine OCR folder is required")
	case c.CoarseDir == "":
		return errors.New("coarse OCR folder is required")
	case c.OutputDir == "":
		return errors.New("output folder is required")
	case c.Workers < 0:
		return errors.New("workers must be non-negative")
	}
	switch c.OutputFormat {
	case "", template.FormatJSON, template.FormatJSONCompact, template.FormatYAML:
	default:
		return errors.New("output format must be json, json-compact or yaml")
	}
	return nil
}
