// Package batch aligns every document of an image folder against one
// template, reading each document's OCR from parallel folders.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/kvmap/internal/align"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

// Result is the outcome of a batch run.
type Result struct {
	RunID     string            `json:"run_id" yaml:"run_id"`
	Documents []*DocumentResult `json:"documents" yaml:"documents"`
	Duration  time.Duration     `json:"duration" yaml:"duration"`
	Workers   int               `json:"workers" yaml:"workers"`
}

// Succeeded counts successful documents.
func (r *Result) Succeeded() int {
	n := 0
	for _, d := range r.Documents {
		if d != nil && d.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts failed documents.
func (r *Result) Failed() int {
	n := 0
	for _, d := range r.Documents {
		if d != nil && !d.Succeeded() {
			n++
		}
	}
	return n
}

// FirstError returns the first document error in input order.
func (r *Result) FirstError() error {
	for _, d := range r.Documents {
		if d != nil && d.Err != nil {
			return fmt.Errorf("%s: %w", d.Base, d.Err)
		}
	}
	return nil
}

// Run aligns all documents found in cfg.ImageDir.
func Run(ctx context.Context, cfg Config, engine *align.Engine, tpl *template.Template, logger *slog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil || tpl == nil {
		return nil, errors.New("engine and template are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	docs, err := discoverDocuments(cfg.ImageDir, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, errors.New("no image files found")
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	var progress ProgressCallback
	if cfg.ShowProgress && !cfg.Quiet {
		progress = NewMultiProgressCallback(
			NewConsoleProgressCallback(os.Stderr, "Aligning: ").WithUpdateInterval(cfg.ProgressInterval),
			NewLogProgressCallback(logger, slog.LevelDebug, 10),
		)
	} else {
		progress = NewLogProgressCallback(logger, slog.LevelDebug, 10)
	}

	logger.Info("starting batch", "documents", len(docs), "workers", workers)
	start := time.Now()
	processor := NewProcessor(engine, tpl, cfg, logger)
	results := processAll(ctx, processor, docs, workers, cfg.ContinueOnError, progress)

	res := &Result{
		RunID:     runID,
		Documents: compact(results),
		Duration:  time.Since(start),
		Workers:   workers,
	}
	logger.Info("batch finished",
		"succeeded", res.Succeeded(),
		"failed", res.Failed(),
		"duration", res.Duration.Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !cfg.ContinueOnError {
		if err := res.FirstError(); err != nil {
			return res, err
		}
	}
	return res, nil
}

func compact(results []*DocumentResult) []*DocumentResult {
	out := results[:0]
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
