package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/kvmap/internal/align"
	"github.com/MeKo-Tech/kvmap/internal/batch"
	"github.com/MeKo-Tech/kvmap/internal/template"
)

type batchOptions struct {
	templatePath  string
	imageDir      string
	fineDir       string
	coarseDir     string
	outputDir     string
	summaryFormat string
	summaryFile   string
	progress      bool
	include       []string
	exclude       []string
}

func newBatchCommand(a *app) *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Align a template onto every document of a folder",
		Long: `Align one template onto every image of a folder. For each image <base>.<ext>
the OCR results are read from <fine>/<base>.json and <coarse>/<base>.json and
the aligned document is written to <output>/<base>.json.

Examples:
  kvmap batch --template form.json --images scans --fine ocr/fine --coarse ocr/coarse --output mapped
  kvmap batch ... --workers 8 --overlay-dir overlays --summary-format csv --summary-file run.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.templatePath, "template", "t", "", "annotation template (JSON)")
	f.StringVar(&opts.imageDir, "images", "", "folder with the document images")
	f.StringVar(&opts.fineDir, "fine", "", "folder with the fine OCR results")
	f.StringVar(&opts.coarseDir, "coarse", "", "folder with the coarse OCR results")
	f.StringVarP(&opts.outputDir, "output", "o", "", "folder for the aligned documents")
	f.IntP("workers", "w", 4, "number of parallel workers")
	f.Bool("continue-on-error", true, "keep going when a document fails")
	f.Bool("overwrite", true, "replace existing output files")
	f.StringP("format", "f", "json", "document format: json or yaml")
	f.Bool("compact", false, "round boxes and drop annotation ids")
	f.String("overlay-dir", "", "write <overlay-dir>/<base>_overlay.png per document")
	f.StringVar(&opts.summaryFormat, "summary-format", batch.SummaryText, "summary format: text, json, yaml, csv")
	f.StringVar(&opts.summaryFile, "summary-file", "", "write the summary to a file instead of stdout")
	f.BoolVar(&opts.progress, "progress", false, "show a progress bar on stderr")
	f.StringSliceVar(&opts.include, "include", nil, "only process images matching these glob patterns")
	f.StringSliceVar(&opts.exclude, "exclude", nil, "skip images matching these glob patterns")
	for _, name := range []string{"template", "images", "fine", "coarse", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	bindConfigKey(f, "workers", "batch.workers")
	bindConfigKey(f, "continue-on-error", "batch.continue_on_error")
	bindConfigKey(f, "overwrite", "batch.overwrite")
	bindConfigKey(f, "format", "output.format")
	bindConfigKey(f, "compact", "output.compact")
	bindConfigKey(f, "overlay-dir", "output.overlay_dir")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, opts *batchOptions) error {
	switch a.cfg.Output.Format {
	case "text", "csv":
		return fmt.Errorf("batch output format must be json or yaml, got %s", a.cfg.Output.Format)
	}
	tpl, err := template.Load(opts.templatePath)
	if err != nil {
		return err
	}
	engine, err := align.New(a.cfg.Align, align.WithLogger(a.logger))
	if err != nil {
		return err
	}

	bc := a.cfg.BatchSettings(opts.imageDir, opts.fineDir, opts.coarseDir, opts.outputDir)
	bc.IncludePatterns = opts.include
	bc.ExcludePatterns = opts.exclude
	bc.ShowProgress = opts.progress
	bc.Quiet = !opts.progress

	res, runErr := batch.Run(cmd.Context(), bc, engine, tpl, a.logger)
	if res != nil {
		if err := batch.WriteSummary(cmd.OutOrStdout(), opts.summaryFile, res, opts.summaryFormat); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if n := res.Failed(); n > 0 {
		a.logger.Warn("some documents failed", "failed", n, "total", len(res.Documents))
	}
	return nil
}
